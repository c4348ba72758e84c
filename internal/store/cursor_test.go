package store

import (
	"encoding/base64"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{
		PK:        "tenant_default#u1",
		SK:        "task-123",
		CreatedAt: "2024-05-01T10:00:00Z",
	}

	got := DecodeCursor(EncodeCursor(c), c.PK)
	if got == nil {
		t.Fatal("decode returned nil for a valid cursor")
	}
	if *got != c {
		t.Fatalf("round trip mismatch: got %+v, want %+v", *got, c)
	}
}

func TestDecodeCursorMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-base64!!!",
		base64.URLEncoding.EncodeToString([]byte("not json")),
		base64.URLEncoding.EncodeToString([]byte("{}")),
		base64.URLEncoding.EncodeToString([]byte(`{"pk":"tenant_default#u1"}`)),
		base64.URLEncoding.EncodeToString([]byte(`[1,2,3]`)),
	}

	for _, raw := range cases {
		if got := DecodeCursor(raw, "tenant_default#u1"); got != nil {
			t.Errorf("DecodeCursor(%q) = %+v, want nil", raw, got)
		}
	}
}

func TestDecodeCursorForeignTenant(t *testing.T) {
	c := Cursor{
		PK:        "tenant_default#attacker",
		SK:        "task-123",
		CreatedAt: "2024-05-01T10:00:00Z",
	}

	if got := DecodeCursor(EncodeCursor(c), "tenant_default#victim"); got != nil {
		t.Fatalf("cursor from another tenant decoded to %+v, want nil", got)
	}
}
