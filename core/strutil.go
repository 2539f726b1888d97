package core

// utoa formats an unsigned integer without the fmt package, which is too
// heavy for the firmware image.
func utoa(n uint32) string {
	var buf [10]byte
	pos := len(buf)
	for {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return string(buf[pos:])
}

// itoa formats a signed integer
func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-int64(n)))
	}
	return utoa(uint32(n))
}
