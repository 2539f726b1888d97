package core

// Register is a single peripheral register with read/modify/write access.
// TinyGo's *volatile.Register32 satisfies it directly, so targets can hand
// memory-mapped registers to the core without wrapping them.
type Register interface {
	Get() uint32
	Set(value uint32)
	SetBits(value uint32)
	ClearBits(value uint32)
	HasBits(value uint32) bool
}

// TimerRegisters is the register file of one general-purpose timer
// (STM32 TIMx layout). Only the registers the power stage touches are listed.
type TimerRegisters struct {
	CR1   Register
	CR2   Register
	SMCR  Register
	EGR   Register
	CCMR1 Register
	CCMR2 Register
	CCER  Register
	ARR   Register
	CCR   [4]Register
}

// TIMx_CR1
const (
	TIM_CR1_CEN   = 1 << 0
	TIM_CR1_CMS_0 = 1 << 5 // center-aligned mode 1
	TIM_CR1_CMS   = 3 << 5
	TIM_CR1_ARPE  = 1 << 7
)

// TIMx_CR2
const (
	TIM_CR2_MMS_0 = 1 << 4 // TRGO on counter enable
	TIM_CR2_MMS   = 7 << 4
)

// TIMx_SMCR
const (
	TIM_SMCR_SMS_1 = 1 << 1
	TIM_SMCR_SMS_2 = 1 << 2
	TIM_SMCR_SMS   = 7 << 0
	TIM_SMCR_TS_1  = 1 << 5 // ITR2
	TIM_SMCR_TS    = 7 << 4
	TIM_SMCR_MSM   = 1 << 7

	// Trigger mode: the counter starts on a rising edge of TRGI.
	TIM_SMCR_SMS_TRIGGER = TIM_SMCR_SMS_1 | TIM_SMCR_SMS_2
)

// TIMx_EGR
const (
	TIM_EGR_UG   = 1 << 0
	TIM_EGR_COMG = 1 << 5
)

// TIMx_CCMRx output compare bits for the first channel of the register.
// The second channel of the same register is shifted by 8.
const (
	TIM_CCMR_OCFE   = 1 << 2
	TIM_CCMR_OCPE   = 1 << 3
	TIM_CCMR_OCM_1  = 1 << 5
	TIM_CCMR_OCM_2  = 1 << 6
	TIM_CCMR_OC_PWM = TIM_CCMR_OCFE | TIM_CCMR_OCPE | TIM_CCMR_OCM_1 | TIM_CCMR_OCM_2
)

// TIMx_CCER
const (
	TIM_CCER_CC1E = 1 << 0
	TIM_CCER_CC1P = 1 << 1
	TIM_CCER_CC2E = 1 << 4
	TIM_CCER_CC2P = 1 << 5
	TIM_CCER_CC3E = 1 << 8
	TIM_CCER_CC3P = 1 << 9
	TIM_CCER_CC4E = 1 << 12
	TIM_CCER_CC4P = 1 << 13

	TIM_CCER_ALL_ENABLED = TIM_CCER_CC1E | TIM_CCER_CC2E | TIM_CCER_CC3E | TIM_CCER_CC4E
)

// ccerPolarity returns the CCxP bit for a zero-based channel index.
func ccerPolarity(channel uint8) uint32 {
	return TIM_CCER_CC1P << (4 * uint32(channel))
}

// ccmrPWM returns the CCMR1/CCMR2 value that puts both channels of the
// register in PWM mode 1 with preload and fast enable.
func ccmrPWM() uint32 {
	return TIM_CCMR_OC_PWM | TIM_CCMR_OC_PWM<<8
}
