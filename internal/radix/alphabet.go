package radix

// Alphabet restricts tree keys to digits, letters, and the five path
// separators WSV canonical keys use: '_', '/', '#', '@', '-'.
// Grounded on original_source/libs/common/radix_tree.hpp's Alphabet,
// reimplemented as a lookup table instead of the original's ASCII-range
// bit tricks.
const alphabetSize = 67

var alphaPos [256]int8

func init() {
	for i := range alphaPos {
		alphaPos[i] = -1
	}
	pos := int8(0)
	add := func(lo, hi byte) {
		for c := lo; c <= hi; c++ {
			alphaPos[c] = pos
			pos++
		}
	}
	add('0', '9')
	add('A', 'Z')
	add('a', 'z')
	for _, c := range []byte{'_', '/', '#', '@', '-'} {
		alphaPos[c] = pos
		pos++
	}
}

// Allowed reports whether c is part of the radix tree alphabet.
func Allowed(c byte) bool { return alphaPos[c] >= 0 }

func position(c byte) int8 { return alphaPos[c] }

// Compare orders two keys by alphabet position rather than raw byte value,
// matching the order FilterEnumerate visits the tree in. Callers that need
// to merge the tree's keys with keys from elsewhere (e.g. memkv's pending
// writes) should sort by this, not bytes.Compare.
func Compare(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		pa, pb := alphaPos[a[i]], alphaPos[b[i]]
		if pa != pb {
			if pa < pb {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
