// Package levenshtein computes edit distances between strings.
package levenshtein

// Distance returns the minimum number of single-rune insertions, deletions
// and substitutions that turn a into b. Comparison is ordinal and
// case-sensitive; an empty side yields the rune length of the other.
func Distance(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	alen := len(ar)
	blen := len(br)

	// bảng chi phí (alen+1) x (blen+1)
	cost := make([][]int, alen+1)
	for i := range cost {
		cost[i] = make([]int, blen+1)
		cost[i][0] = i
	}
	for j := 0; j <= blen; j++ {
		cost[0][j] = j
	}
	for i := 1; i <= alen; i++ {
		for j := 1; j <= blen; j++ {
			sub := 1
			if ar[i-1] == br[j-1] {
				sub = 0
			}
			cost[i][j] = min(
				cost[i-1][j]+1,
				cost[i][j-1]+1,
				cost[i-1][j-1]+sub,
			)
		}
	}
	return cost[alen][blen]
}

// Similarity maps the distance into [0, 1]: 1 for identical strings, 0 when
// nothing is shared.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(Distance(a, b))/float64(maxLen)
}

// Nullable treats nil as the empty string, the way record fields without a
// value are compared.
func Nullable(a, b *string) int {
	var sa, sb string
	if a != nil {
		sa = *a
	}
	if b != nil {
		sb = *b
	}
	return Distance(sa, sb)
}
