// Package similarity scores how close two strings are. It backs the fuzzy
// phase of the ranker and the index-free relevance scorer.
package similarity

// LevenshteinDistance returns the minimum number of single-rune insertions,
// deletions and substitutions that turn a into b.
func LevenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	rows, cols := len(ra)+1, len(rb)+1

	table := make([][]int, rows)
	for i := range table {
		table[i] = make([]int, cols)
		table[i][0] = i
	}
	for j := 0; j < cols; j++ {
		table[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			table[i][j] = min(
				table[i-1][j]+1,
				table[i][j-1]+1,
				table[i-1][j-1]+cost,
			)
		}
	}
	return table[rows-1][cols-1]
}

// Similarity normalises the edit distance into [0, 1], where 1 means equal.
// Two empty strings are equal.
func Similarity(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	distance := LevenshteinDistance(a, b)
	return float64(maxLen-distance) / float64(maxLen)
}
