// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"strings"
	"time"

	"example.com/steprewards/internal/domain"
)

// EncodeCursor serialises the ledger-history cursor to a string token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := c.Date.UTC().Format(domain.DateLayout)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses the encoded cursor token.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse(domain.DateLayout, string(decoded))
	if err != nil {
		return nil, err
	}
	return &domain.Cursor{Date: date}, nil
}
