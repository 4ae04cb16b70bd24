package csr

import "math/bits"

// LowestSetBit returns the index of the least significant set bit of a
// 128-bit vector stored as four little-endian words.
func LowestSetBit(v [4]uint32) (int, bool) {
	for i, word := range v {
		if word != 0 {
			return i*32 + bits.TrailingZeros32(word), true
		}
	}
	return 0, false
}

// AnySet reports whether any bit of the vector is set.
func AnySet(v [4]uint32) bool {
	return v[0]|v[1]|v[2]|v[3] != 0
}

func and4(a, b [4]uint32) [4]uint32 {
	return [4]uint32{a[0] & b[0], a[1] & b[1], a[2] & b[2], a[3] & b[3]}
}

func boolBit(b bool, shift uint) uint32 {
	if b {
		return 1 << shift
	}
	return 0
}
