package analysis

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenEstimator counts prompt tokens before a paid call is made, so
// dry runs and budget projections do not need the API.
type TokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTokenEstimator loads the o200k_base encoding. When the encoding
// data cannot be loaded the estimator falls back to a chars/4 heuristic.
func NewTokenEstimator() *TokenEstimator {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return &TokenEstimator{}
	}
	return &TokenEstimator{enc: enc}
}

// Estimate returns the approximate token count of text.
func (e *TokenEstimator) Estimate(text string) int {
	if e.enc == nil {
		return len(text) / 4
	}
	return len(e.enc.Encode(text, nil, nil))
}
