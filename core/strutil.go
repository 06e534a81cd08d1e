package core

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte
	pos := len(buf)
	negative := n < 0
	u := uint64(n)
	if negative {
		u = uint64(-n)
	}
	for u > 0 {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

const hexDigits = "0123456789abcdef"

// FormatMAC renders a MAC address as colon-separated lowercase hex.
func FormatMAC(mac [6]byte) string {
	var buf [17]byte
	for i, b := range mac {
		if i > 0 {
			buf[i*3-1] = ':'
		}
		buf[i*3] = hexDigits[b>>4]
		buf[i*3+1] = hexDigits[b&0x0f]
	}
	return string(buf[:])
}
