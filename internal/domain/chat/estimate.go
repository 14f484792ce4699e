package chat

// EstimateTokens approximates the token count of a text as one token per
// four characters, rounded up. Deliberately model-agnostic; billing uses
// the same estimate everywhere so the ledger stays internally consistent.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// Cost prices a token count at the configured rate per thousand tokens
func Cost(tokens int, costPer1K float64) float64 {
	return float64(tokens) / 1000 * costPer1K
}
