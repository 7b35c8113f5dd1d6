package search

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrTokenDecode is returned when a continuation token string cannot be
// decoded. Callers of the orchestrator never see it: a corrupted token
// degrades to a fresh first page.
var ErrTokenDecode = errors.New("continuation token decode")

// GlobalContinuationToken is the cursor for a multi-backend paginated
// search. It carries one opaque token slot per backend plus the score
// threshold that keeps ranking consistent across pages: once set, only
// results scoring at or below it may appear on the next page.
type GlobalContinuationToken struct {
	BackendTokens      map[string]string `json:"backend_tokens,omitempty"`
	PageNumber         int               `json:"page_number"`
	TotalResultsSeen   int               `json:"total_results_seen"`
	LastScoreThreshold *float64          `json:"last_score_threshold,omitempty"`
}

// Encode serializes the token to a single opaque string.
func (t *GlobalContinuationToken) Encode() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode continuation token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// DecodeContinuationToken parses an opaque token string.
// The returned error always wraps ErrTokenDecode.
func DecodeContinuationToken(s string) (*GlobalContinuationToken, error) {
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}
	var t GlobalContinuationToken
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}
	if t.PageNumber < 0 {
		return nil, fmt.Errorf("%w: negative page number", ErrTokenDecode)
	}
	return &t, nil
}
