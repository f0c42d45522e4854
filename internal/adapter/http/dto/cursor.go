package dto

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/iho/coinledger/internal/domain"
)

// ErrInvalidCursor is returned for cursors this API did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

// EncodeCursor turns a keyset position into an opaque token.
func EncodeCursor(c *domain.EntryCursor) string {
	raw := strconv.FormatInt(c.OccurredAt.UnixNano(), 10) + ":" + strconv.FormatInt(c.ID, 10)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token from EncodeCursor. An empty token means the first page.
func DecodeCursor(token string) (*domain.EntryCursor, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	i, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &domain.EntryCursor{OccurredAt: time.Unix(0, n).UTC(), ID: i}, nil
}
