// Package cursor implements the opaque pagination token used by note listings.
//
// A token encodes the (updatedAt, createdAt, id) sort key of the last item
// of a page. Callers must treat tokens as opaque strings and pass them back
// verbatim.
package cursor

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Key is the composite sort key of a note under the listing order
// (updatedAt desc, createdAt desc, id desc).
type Key struct {
	UpdatedAt time.Time
	CreatedAt time.Time
	ID        string
}

// Encode serializes a sort key into an opaque token.
func Encode(k Key) string {
	raw := fmt.Sprintf("%d|%d|%s", k.UpdatedAt.UnixNano(), k.CreatedAt.UnixNano(), k.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token produced by Encode.
func Decode(token string) (Key, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Key{}, fmt.Errorf("cursor: decode: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 3)
	if len(parts) != 3 || parts[2] == "" {
		return Key{}, fmt.Errorf("cursor: malformed token")
	}
	updated, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("cursor: malformed updatedAt: %w", err)
	}
	created, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Key{}, fmt.Errorf("cursor: malformed createdAt: %w", err)
	}
	return Key{
		UpdatedAt: time.Unix(0, updated).UTC(),
		CreatedAt: time.Unix(0, created).UTC(),
		ID:        parts[2],
	}, nil
}
