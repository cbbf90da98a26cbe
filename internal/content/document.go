// internal/content/document.go
//
// Schema-versioned content snapshot.
//
// Context
// -------
// Every minisite version carries one Document: the full denormalized site
// content as opaque JSON plus the schema version it was authored under.
// Documents are write-once.  The form processor validates raw input *before*
// a Document is built; the version engine never looks inside Raw.
//
// Notes
// -----
// • Raw is stored byte-for-byte so a draft reads back exactly as submitted.
// • Historical snapshots keep their original SchemaVersion; there is no
//   in-place migration of old content.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SchemaVersionCurrent is stamped on documents produced by the form
// processor.  Bump it when the content shape changes; old versions keep the
// tag they were written with.
const SchemaVersionCurrent = 2

var errEmptyDocument = errors.New("content: empty document")

// Document is an immutable content snapshot.  The db tags line up with the
// schema_version and site_json columns shared by the head and version tables.
type Document struct {
	SchemaVersion int             `db:"schema_version" json:"schema_version"`
	Raw           json.RawMessage `db:"site_json"      json:"site_json"`
}

// New validates the raw payload and wraps it.  The payload must be
// well-formed JSON; anything deeper is the form processor's business.
func New(schemaVersion int, raw []byte) (Document, error) {
	if len(raw) == 0 {
		return Document{}, errEmptyDocument
	}
	if schemaVersion < 1 {
		return Document{}, fmt.Errorf("content: schema version %d out of range", schemaVersion)
	}
	if !json.Valid(raw) {
		return Document{}, errors.New("content: payload is not valid JSON")
	}
	return Document{SchemaVersion: schemaVersion, Raw: json.RawMessage(raw)}, nil
}

// Clone returns a deep copy.  Rollback uses this so a new draft never shares
// backing bytes with its source version.
func (d Document) Clone() Document {
	cp := make(json.RawMessage, len(d.Raw))
	copy(cp, d.Raw)
	return Document{SchemaVersion: d.SchemaVersion, Raw: cp}
}

// IsZero reports whether the document has never been set.
func (d Document) IsZero() bool { return d.SchemaVersion == 0 && len(d.Raw) == 0 }
