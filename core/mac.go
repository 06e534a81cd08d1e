package core

// deriveMAC folds chip ID bytes into six bytes, then marks the address as
// a locally administered unicast address.
func deriveMAC(id []byte, mac *[6]byte) {
	*mac = [6]byte{}
	for i, b := range id {
		mac[i%6] ^= b
	}
	mac[0] &^= 0x01 // unicast
	mac[0] |= 0x02  // locally administered
}
