// Package ident holds the ordered identifier bag shared by samples, patients
// and findings, and the deterministic surrogate id derivation.
package ident

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Transient identifier codes. They correlate records during one conversion
// run and are never written as document identifiers.
const (
	CodeFHIRID = "fhirid"
	CodeOID    = "oid"
	CodeIndex  = "index"
)

// ErrMissingNaturalKey is returned when a surrogate id has to be derived but
// there is no natural key to derive it from.
var ErrMissingNaturalKey = errors.New("missing natural key")

// Identifier is a (code, value) pair, e.g. ("SAMPLEID", "S-100").
type Identifier struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// IsZero reports whether the identifier carries no value.
func (id Identifier) IsZero() bool {
	return id.Value == ""
}

func (id Identifier) String() string {
	if id.IsZero() {
		return ""
	}
	return id.Code + ":" + id.Value
}

// Identifiers is an ordered identifier bag. Codes are not required to be
// unique; every lookup by code returns the first match, and identifiers with
// an empty value count as absent.
type Identifiers []Identifier

// Get returns the value of the first identifier with the given code.
func (ids Identifiers) Get(code string) (string, bool) {
	for _, id := range ids {
		if id.Code == code && id.Value != "" {
			return id.Value, true
		}
	}
	return "", false
}

// Has reports whether an identifier with the given code is present.
func (ids Identifiers) Has(code string) bool {
	_, ok := ids.Get(code)
	return ok
}

// Add appends an identifier. Existing identifiers are never replaced.
func (ids *Identifiers) Add(code, value string) {
	*ids = append(*ids, Identifier{Code: code, Value: value})
}

// Durable returns the identifiers that belong into documents, i.e. all
// identifiers with a value except the transient ones.
func (ids Identifiers) Durable() Identifiers {
	var out Identifiers
	for _, id := range ids {
		if id.Value == "" || IsTransient(id.Code) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Main returns the primary natural key. It is the first identifier coded
// mainCode; if there is none, the only durable identifier is used, provided
// there is exactly one.
func (ids Identifiers) Main(mainCode string) (Identifier, bool) {
	if mainCode != "" {
		if v, ok := ids.Get(mainCode); ok {
			return Identifier{Code: mainCode, Value: v}, true
		}
	}
	durable := ids.Durable()
	if len(durable) == 1 {
		return durable[0], true
	}
	return Identifier{}, false
}

func (ids Identifiers) String() string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if s := id.String(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

// IsTransient reports whether code is one of the run-local correlation codes.
func IsTransient(code string) bool {
	switch code {
	case CodeFHIRID, CodeOID, CodeIndex:
		return true
	}
	return false
}

// GenerateFHIRID derives a surrogate id from a natural key. The id is a
// name-based UUID (version 5, DNS namespace), so the same key yields the same
// id in every run.
func GenerateFHIRID(key string) (string, error) {
	if key == "" {
		return "", ErrMissingNaturalKey
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String(), nil
}
