package chain

// Minimal RLP encoder, enough for legacy transactions. Integers are
// encoded as big-endian strings with no leading zeros; zero is the empty
// string.

func rlpUint(v uint64) []byte {
	return rlpBytes(uintBytes(v))
}

func uintBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var buf [8]byte
	n := 0
	for i := 7; i >= 0; i-- {
		buf[7-i] = byte(v >> (8 * uint(i)))
	}
	for n < 8 && buf[n] == 0 {
		n++
	}
	return buf[n:]
}

func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(rlpLength(len(b), 0x80), b...)
}

func rlpList(items ...[]byte) []byte {
	var payload []byte
	for _, it := range items {
		payload = append(payload, it...)
	}
	return append(rlpLength(len(payload), 0xc0), payload...)
}

func rlpLength(n int, offset byte) []byte {
	if n < 56 {
		return []byte{offset + byte(n)}
	}
	lenBytes := uintBytes(uint64(n))
	out := make([]byte, 0, 1+len(lenBytes))
	out = append(out, offset+55+byte(len(lenBytes)))
	return append(out, lenBytes...)
}
