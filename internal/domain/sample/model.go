package sample

import (
	"errors"
	"fmt"

	"gopkg.in/guregu/null.v3"

	"github.com/numlims/fhirbuild/internal/platform/ident"
)

var (
	// ErrInvalidCategory is returned for a category outside MASTER, DERIVED
	// and ALIQUOTGROUP.
	ErrInvalidCategory = errors.New("invalid sample category")
	// ErrMissingParent is returned for an aliquot group without a parent.
	ErrMissingParent = errors.New("missing parent")
)

// Category is the position of a sample in the sample hierarchy.
type Category string

const (
	CategoryMaster       Category = "MASTER"
	CategoryDerived      Category = "DERIVED"
	CategoryAliquotGroup Category = "ALIQUOTGROUP"
)

// ParseCategory parses a category. Input is matched exactly.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMaster, CategoryDerived, CategoryAliquotGroup:
		return true
	}
	return false
}

// Amount is a quantity with its unit.
type Amount struct {
	Value float64
	Unit  string
}

// Ref describes a parent sample by whatever identifiers the input had for
// it. It does not point at the parent record; the parent may not have been
// read yet.
type Ref struct {
	IDs ident.Identifiers
}

// FHIRID returns the parent's surrogate id, or "" if it is not known.
func (r *Ref) FHIRID() string {
	v, _ := r.IDs.Get(ident.CodeFHIRID)
	return v
}

// Sample is one sample record. The resolver only touches Category, IDs and
// Parent; everything else is passed through to the document.
type Sample struct {
	// Row is the input line the sample was read from.
	Row int

	Category Category
	IDs      ident.Identifiers
	Parent   *Ref

	Patient              ident.Identifier
	Type                 null.String
	OrganizationUnit     null.String
	ReceivedDate         null.Time
	CollectionDate       null.Time
	DerivalDate          null.Time
	RepositionDate       null.Time
	InitialAmount        *Amount
	RestAmount           *Amount
	LocationPath         null.String
	XPosition            null.Int
	YPosition            null.Int
	Receptacle           null.String
	Concentration        null.Float
	StockProcessing      null.String
	StockProcessingDate  null.Time
	SecondProcessing     null.String
	SecondProcessingDate null.Time
	UpdateWithOverwrite  bool
}

// FHIRID returns the sample's surrogate id, or "" before resolution.
func (s *Sample) FHIRID() string {
	v, _ := s.IDs.Get(ident.CodeFHIRID)
	return v
}

// Key returns a short description of the sample for messages: its natural
// key if there is one, else all its identifiers.
func (s *Sample) Key(mainCode string) string {
	if id, ok := s.IDs.Main(mainCode); ok {
		return id.String()
	}
	return s.IDs.String()
}
