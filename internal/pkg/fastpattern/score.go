package fastpattern

// scoreCap bounds how many bytes contribute to a pattern's score, so very
// long patterns stop gaining over merely long ones.
const scoreCap = 255

// Score rates how selective a literal pattern is as a pre-filter needle.
// Higher is better. The function is pure and deterministic.
//
// Each byte seen for the first time contributes 4 if it is outside
// [0-9A-Za-z], else 3; every repeated byte contributes 1. Length therefore
// raises the score monotonically while low-diversity patterns (all-same
// byte, short periodic runs) fall behind diverse ones of equal length.
// An empty pattern scores 0.
func Score(pattern []byte) uint32 {
	var seen [256]bool
	var score uint32

	n := len(pattern)
	if n > scoreCap {
		n = scoreCap
	}
	for _, b := range pattern[:n] {
		switch {
		case seen[b]:
			score++
		case isAlnum(b):
			seen[b] = true
			score += 3
		default:
			seen[b] = true
			score += 4
		}
	}
	return score
}

func isAlnum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
