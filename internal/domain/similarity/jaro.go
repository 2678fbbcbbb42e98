// Package similarity provides string similarity measures used to compare
// business names.
package similarity

// prefixScale is the Winkler boost per shared leading rune.
const (
	prefixScale  = 0.1
	maxPrefixLen = 4
)

// Jaro returns the Jaro similarity of a and b in [0,1].
func Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	r1, r2 := []rune(a), []rune(b)
	len1, len2 := len(r1), len(r2)
	if len1 == 0 || len2 == 0 {
		return 0.0
	}

	window := max(len1, len2)/2 - 1
	if window < 0 {
		window = 0
	}

	m1 := make([]bool, len1)
	m2 := make([]bool, len2)
	matches := 0
	for i := 0; i < len1; i++ {
		start := max(0, i-window)
		end := min(i+window+1, len2)
		for j := start; j < end; j++ {
			if m2[j] || r1[i] != r2[j] {
				continue
			}
			m1[i] = true
			m2[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !m1[i] {
			continue
		}
		for !m2[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(len1) + m/float64(len2) + (m-float64(transpositions)/2)/m) / 3.0
}

// JaroWinkler boosts the Jaro similarity for strings sharing a prefix of up
// to four runes.
func JaroWinkler(a, b string) float64 {
	j := Jaro(a, b)
	if j == 0 || j == 1 {
		return j
	}
	r1, r2 := []rune(a), []rune(b)
	prefix := 0
	for prefix < min(len(r1), len(r2), maxPrefixLen) && r1[prefix] == r2[prefix] {
		prefix++
	}
	return j + float64(prefix)*prefixScale*(1-j)
}
