package scan

func boolsToBytes(bits []bool) []byte {
	if len(bits) == 0 {
		return nil
	}
	out := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			out[i/8] |= 1 << (uint(i) % 8)
		}
	}
	return out
}

func bytesToBools(buf []byte, bits int) []bool {
	if bits == 0 {
		return nil
	}
	out := make([]bool, bits)
	for i := 0; i < bits; i++ {
		if i/8 < len(buf) {
			out[i] = buf[i/8]&(1<<(uint(i)%8)) != 0
		}
	}
	return out
}

func bitsToUint32(bits []bool) uint32 {
	var val uint32
	for i, bit := range bits {
		if bit {
			val |= 1 << uint(i)
		}
	}
	return val
}
