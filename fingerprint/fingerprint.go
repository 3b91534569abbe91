// Package fingerprint computes stable content hashes of tickets and decides
// whether data derived from a ticket is stale.
//
// A fingerprint covers the whitespace-normalized title, description,
// acceptance criteria and any extra fields of a ticket. Field order, line
// endings, indentation and the difference between a missing and an empty
// field do not affect the result.
package fingerprint

import (
	"encoding/hex"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/text/unicode/norm"
)

// Value is a hex-encoded fingerprint. The zero value means "never computed".
type Value string

// String returns the full hex digest.
func (v Value) String() string {
	return string(v)
}

// Short returns the first 12 hex characters, for logs and CLI output.
func (v Value) Short() string {
	if len(v) <= 12 {
		return string(v)
	}
	return string(v[:12])
}

// IsZero reports whether the fingerprint was never computed.
func (v Value) IsZero() bool {
	return v == ""
}

// Content is the part of a ticket that determines its fingerprint.
type Content struct {
	Title              string
	Description        string
	AcceptanceCriteria string

	// Fields holds additional source fields that should count as content.
	Fields map[string]string
}

// Reserved field names for the fixed content fields.
const (
	FieldTitle              = "title"
	FieldDescription        = "description"
	FieldAcceptanceCriteria = "acceptance_criteria"
)

// domainKey keys the BLAKE3 hash so ticket fingerprints never collide with
// hashes computed for other purposes over the same bytes.
var domainKey = [32]byte{
	'p', 'r', 'o', 'r', 'e', 'f', '.', 't', 'i', 'c', 'k', 'e', 't', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0,
}

// encMode is CBOR Core Deterministic Encoding: map keys are sorted, so the
// encoding of a field map does not depend on insertion order.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("fingerprint: CBOR encoder initialization failed: " + err.Error())
	}
}

// Normalize applies Unicode NFC and collapses every run of whitespace
// (including line breaks) into a single space, trimming both ends.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// Canonical returns the normalized field map that is hashed. The fixed fields
// are always present; extra fields whose normalized value is empty are
// dropped. Extra fields never override the fixed ones.
func (c Content) Canonical() map[string]string {
	fields := make(map[string]string, len(c.Fields)+3)
	for name, value := range c.Fields {
		key := Normalize(strings.ToLower(name))
		if key == "" {
			continue
		}
		if v := Normalize(value); v != "" {
			fields[key] = v
		}
	}
	fields[FieldTitle] = Normalize(c.Title)
	fields[FieldDescription] = Normalize(c.Description)
	fields[FieldAcceptanceCriteria] = Normalize(c.AcceptanceCriteria)
	return fields
}

// Of computes the fingerprint of c.
func Of(c Content) Value {
	data, err := encMode.Marshal(c.Canonical())
	if err != nil {
		// A map[string]string always encodes.
		panic("fingerprint: encode content: " + err.Error())
	}

	hasher, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		panic("fingerprint: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(data)
	return Value(hex.EncodeToString(hasher.Sum(nil)))
}

// Stamped is implemented by everything derived from a ticket at a point in
// time: artifacts, embeddings and quality scores.
type Stamped interface {
	// SourceFingerprint returns the ticket fingerprint the value was derived from.
	SourceFingerprint() Value
}

// IsStale reports whether s was derived from content other than current.
// A nil value is never stale; it does not exist.
func IsStale(s Stamped, current Value) bool {
	if s == nil {
		return false
	}
	return Changed(s.SourceFingerprint(), current)
}

// Changed reports whether two fingerprints differ.
func Changed(stored, current Value) bool {
	return stored != current
}
