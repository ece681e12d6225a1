package sample

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/numlims/fhirbuild/internal/platform/ident"
)

// Warning kinds reported by the resolver.
const (
	WarningUnresolvedParent = "unresolved_parent"
	WarningMissingParent    = "missing_parent"
	WarningDuplicateKey     = "duplicate_key"
)

// Warning is a non-fatal finding about one record.
type Warning struct {
	// Index is the position of the record in the resolved slice.
	Index   int
	Kind    string
	Sample  string
	Parent  string
	Message string
}

// Result is the outcome of one resolution pass.
type Result struct {
	// Failed maps the index of every record that could not be resolved to
	// the reason. Failed records carry no fhirid and must not be assembled.
	Failed   map[int]error
	Warnings []Warning
}

// OK reports whether record i was resolved.
func (r *Result) OK(i int) bool {
	_, failed := r.Failed[i]
	return !failed
}

// Err combines the errors of all failed records in input order, or returns
// nil if every record was resolved.
func (r *Result) Err() error {
	idx := make([]int, 0, len(r.Failed))
	for i := range r.Failed {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	var err error
	for _, i := range idx {
		err = multierr.Append(err, fmt.Errorf("record %d: %w", i, r.Failed[i]))
	}
	return err
}

// Resolver assigns surrogate ids to samples and links derived samples to
// the ids of their parents.
type Resolver struct {
	mainCode string
	logger   zerolog.Logger
}

// NewResolver creates a resolver that derives ids from the identifier coded
// mainCode.
func NewResolver(mainCode string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		mainCode: mainCode,
		logger:   logger.With().Str("component", "sample-resolver").Logger(),
	}
}

// Resolve runs one pass over samples in order. Every record that does not
// fail ends with exactly one fhirid. A derived record whose parent is given
// by oid or index gets the parent's fhirid added to its parent reference if
// the parent occurs earlier in samples. Records are only ever appended to.
func (r *Resolver) Resolve(samples []*Sample) *Result {
	p := &pass{
		mainCode: r.mainCode,
		byOID:    make(map[string]string),
		byIndex:  make(map[string]string),
		result:   &Result{Failed: make(map[int]error)},
	}
	for i, s := range samples {
		p.visit(i, s)
	}

	r.logger.Debug().
		Int("samples", len(samples)).
		Int("failed", len(p.result.Failed)).
		Int("warnings", len(p.result.Warnings)).
		Msg("samples resolved")
	return p.result
}

// pass holds the correlation tables of one Resolve call.
type pass struct {
	mainCode string
	byOID    map[string]string
	byIndex  map[string]string
	result   *Result
}

func (p *pass) visit(i int, s *Sample) {
	if _, err := ParseCategory(string(s.Category)); err != nil {
		p.result.Failed[i] = err
		return
	}

	fhirid, err := p.assign(s)
	if err != nil {
		p.result.Failed[i] = err
		return
	}

	if oid, ok := s.IDs.Get(ident.CodeOID); ok {
		p.register(i, s, ident.CodeOID, oid, fhirid, p.byOID)
	}
	if index, ok := s.IDs.Get(ident.CodeIndex); ok {
		p.register(i, s, ident.CodeIndex, index, fhirid, p.byIndex)
	}

	if s.Category == CategoryDerived {
		p.link(i, s)
	}
}

// assign returns the record's fhirid, deriving and appending it if the
// record does not carry one yet.
func (p *pass) assign(s *Sample) (string, error) {
	if fhirid := s.FHIRID(); fhirid != "" {
		return fhirid, nil
	}

	var key string
	if s.Category == CategoryAliquotGroup {
		if s.Parent == nil {
			return "", fmt.Errorf("%w: aliquot group has no parent", ErrMissingParent)
		}
		parent, ok := s.Parent.IDs.Main(p.mainCode)
		if !ok {
			return "", fmt.Errorf("%w: parent of aliquot group has no %s", ident.ErrMissingNaturalKey, p.mainCode)
		}
		if s.Type.String == "" {
			return "", fmt.Errorf("%w: aliquot group has no type", ident.ErrMissingNaturalKey)
		}
		key = parent.Value + s.Type.String
	} else {
		main, ok := s.IDs.Main(p.mainCode)
		if !ok {
			return "", fmt.Errorf("%w: sample has no %s", ident.ErrMissingNaturalKey, p.mainCode)
		}
		key = main.Value
	}

	fhirid, err := ident.GenerateFHIRID(key)
	if err != nil {
		return "", err
	}
	s.IDs.Add(ident.CodeFHIRID, fhirid)
	return fhirid, nil
}

// register records fhirid under a correlation key. A repeated key is taken
// over by the later record.
func (p *pass) register(i int, s *Sample, code, key, fhirid string, table map[string]string) {
	if prev, ok := table[key]; ok && prev != fhirid {
		p.warn(i, s, WarningDuplicateKey,
			fmt.Sprintf("%s %s was already used by another sample; later rows refer to this one", code, key))
	}
	table[key] = fhirid
}

// link adds the parent's fhirid to a derived record's parent reference.
func (p *pass) link(i int, s *Sample) {
	if s.Parent == nil {
		p.warn(i, s, WarningMissingParent, "derived sample has no parent")
		return
	}
	if s.Parent.IDs.Has(ident.CodeFHIRID) {
		return
	}

	oid, hasOID := s.Parent.IDs.Get(ident.CodeOID)
	index, hasIndex := s.Parent.IDs.Get(ident.CodeIndex)
	if !hasOID && !hasIndex {
		p.warn(i, s, WarningUnresolvedParent, "parent has no fhirid, oid or index")
		return
	}

	if hasOID {
		if fhirid, ok := p.byOID[oid]; ok {
			s.Parent.IDs.Add(ident.CodeFHIRID, fhirid)
			return
		}
	}
	if hasIndex {
		if fhirid, ok := p.byIndex[index]; ok {
			s.Parent.IDs.Add(ident.CodeFHIRID, fhirid)
			return
		}
	}
	p.warn(i, s, WarningUnresolvedParent,
		"no sample with the parent's oid or index before this row; parents must precede their children")
}

func (p *pass) warn(i int, s *Sample, kind, msg string) {
	w := Warning{
		Index:   i,
		Kind:    kind,
		Sample:  s.Key(p.mainCode),
		Message: msg,
	}
	if s.Parent != nil {
		w.Parent = s.Parent.IDs.String()
	}
	p.result.Warnings = append(p.result.Warnings, w)
}
