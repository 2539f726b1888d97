package core

// Time units used by the motor timing services.
const (
	HnsecPerUsec = 10
	HnsecPerMsec = 10000
)

// Clock is the timing service the beep utility consumes: a monotonic
// timestamp in hundreds of nanoseconds and a busy-wait delay.
type Clock interface {
	Hnsec() uint64
	Udelay(us uint32)
}
