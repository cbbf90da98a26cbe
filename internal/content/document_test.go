// internal/content/document_test.go
//
// Unit-tests for the content document wrapper.
//
// Run: go test ./internal/content -v

package content

import (
	"encoding/json"
	"testing"
)

func TestNewRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		schema int
		raw    string
	}{
		{"empty payload", 2, ""},
		{"zero schema", 0, `{"seo":{}}`},
		{"negative schema", -1, `{"seo":{}}`},
		{"malformed json", 2, `{"seo":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.schema, []byte(tc.raw)); err == nil {
				t.Fatalf("expected error for %q", tc.name)
			}
		})
	}
}

func TestNewKeepsRawBytes(t *testing.T) {
	raw := []byte(`{"seo":{"title":"Cafe"},"contact":{"phone":"+1-555-0100"}}`)
	doc, err := New(SchemaVersionCurrent, raw)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if doc.SchemaVersion != SchemaVersionCurrent {
		t.Fatalf("schema version = %d, want %d", doc.SchemaVersion, SchemaVersionCurrent)
	}
	if string(doc.Raw) != string(raw) {
		t.Fatalf("raw bytes rewritten: %s", doc.Raw)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc, err := New(2, []byte(`{"hero":{"heading":"Welcome"}}`))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cp := doc.Clone()
	if string(cp.Raw) != string(doc.Raw) || cp.SchemaVersion != doc.SchemaVersion {
		t.Fatalf("clone differs from source")
	}

	// Mutating the clone's backing array must not leak into the source.
	cp.Raw[2] = 'X'
	if string(doc.Raw) == string(cp.Raw) {
		t.Fatalf("clone shares backing bytes with source")
	}
}

func TestIsZero(t *testing.T) {
	var zero Document
	if !zero.IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
	doc := Document{SchemaVersion: 1, Raw: json.RawMessage(`{}`)}
	if doc.IsZero() {
		t.Fatalf("populated document reported IsZero")
	}
}
