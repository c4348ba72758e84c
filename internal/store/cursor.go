package store

import (
	"encoding/base64"
	"encoding/json"
)

// Cursor is the resume position for a tenant listing. It mirrors the
// store's last evaluated key: table keys plus the index sort key.
type Cursor struct {
	PK        string `json:"pk"`
	SK        string `json:"sk"`
	CreatedAt string `json:"created_at"`
}

// EncodeCursor renders an opaque, URL-safe token for the client.
func EncodeCursor(c Cursor) string {
	b, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(b)
}

// DecodeCursor parses a client-supplied token. Anything malformed, and
// any cursor minted for a different tenant partition, decodes to nil
// ("no cursor"). It never returns an error: a bad token restarts the
// listing from the top rather than failing the request.
func DecodeCursor(raw, wantPK string) *Cursor {
	if raw == "" {
		return nil
	}
	b, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return nil
	}
	if c.PK == "" || c.SK == "" || c.CreatedAt == "" {
		return nil
	}
	if c.PK != wantPK {
		return nil
	}
	return &c
}
