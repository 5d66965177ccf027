package refloop

// EmbeddedScore is exported for testing.
func EmbeddedScore(output string) (int, bool, bool) {
	v, ok := embeddedEvaluation(output)
	if !ok {
		return 0, false, false
	}
	return v.Score, v.Pass, true
}
