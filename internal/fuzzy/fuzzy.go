// Package fuzzy implements Ratcliff/Obershelp string similarity and
// close-match selection over a candidate set. Matching is deterministic:
// equal ratios preserve candidate order.
package fuzzy

import "sort"

// DefaultCutoff is the similarity floor below which candidates are not
// considered matches.
const DefaultCutoff = 0.6

// Ratio returns the Ratcliff/Obershelp similarity of a and b in [0, 1]:
// twice the number of matching characters over the total length. Identical
// strings score 1, strings with no characters in common score 0.
func Ratio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	m := matchingChars(a, b)
	return 2 * float64(m) / float64(len(a)+len(b))
}

// matchingChars counts matched characters: the longest common substring,
// plus recursively the matches to its left and right.
func matchingChars(a, b string) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	n := size
	n += matchingChars(a[:ai], b[:bi])
	n += matchingChars(a[ai+size:], b[bi+size:])
	return n
}

// longestMatch finds the longest common substring, preferring the earliest
// position in a, then in b, on ties.
func longestMatch(a, b string) (ai, bi, size int) {
	// prev[j] is the match length ending at a[i-1], b[j-1].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}

// CloseMatches returns up to n candidates with Ratio(word, c) >= cutoff,
// best first. Candidate order is preserved among equal ratios.
func CloseMatches(word string, candidates []string, n int, cutoff float64) []string {
	type scored struct {
		s string
		r float64
	}
	var hits []scored
	for _, c := range candidates {
		if r := Ratio(word, c); r >= cutoff {
			hits = append(hits, scored{c, r})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].r > hits[j].r })
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.s
	}
	return out
}

// BestMatch returns the single closest candidate at or above cutoff.
// ok is false when no candidate qualifies.
func BestMatch(word string, candidates []string, cutoff float64) (best string, ok bool) {
	top := -1.0
	for _, c := range candidates {
		if r := Ratio(word, c); r >= cutoff && r > top {
			top = r
			best = c
			ok = true
		}
	}
	return best, ok
}
