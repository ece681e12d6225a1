package report

import (
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"
)

// Severity levels of a data-quality issue.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Kinds of record errors.
const (
	KindDecode     = "decode"
	KindResolve    = "resolve"
	KindBuild      = "build"
	KindValidation = "validation"
)

// Issue is one data-quality finding about an input row.
type Issue struct {
	Row      int    `csv:"row" json:"row"`
	Severity string `csv:"severity" json:"severity"`
	Kind     string `csv:"kind" json:"kind"`
	Subject  string `csv:"subject" json:"subject,omitempty"`
	Parent   string `csv:"parent" json:"parent,omitempty"`
	Message  string `csv:"message" json:"message"`
}

// RecordError is a fatal error for a single input row. The row is excluded
// from the output; whether the run continues is up to the caller.
type RecordError struct {
	Row int
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// FromError turns a record error into an error issue of the given kind.
func FromError(kind string, e *RecordError) Issue {
	return Issue{
		Row:      e.Row,
		Severity: SeverityError,
		Kind:     kind,
		Message:  e.Err.Error(),
	}
}

// Collector gathers the issues of one conversion and applies the record
// error policy: with failFast the first record error stops the conversion,
// otherwise the record is skipped.
type Collector struct {
	failFast bool
	issues   []Issue
}

// NewCollector creates a Collector.
func NewCollector(failFast bool) *Collector {
	return &Collector{failFast: failFast}
}

// Warn records a warning.
func (c *Collector) Warn(is Issue) {
	is.Severity = SeverityWarning
	c.issues = append(c.issues, is)
}

// Fail records a record error. It returns the error if the conversion has
// to stop and nil if the record is to be skipped.
func (c *Collector) Fail(kind, subject string, row int, err error) error {
	return c.FailRecord(Issue{Row: row, Kind: kind, Subject: subject}, err)
}

// FailRecord is Fail for a record described by is. Row, Kind, Subject and
// Parent are taken from is.
func (c *Collector) FailRecord(is Issue, err error) error {
	re := &RecordError{Row: is.Row, Err: err}
	issue := FromError(is.Kind, re)
	issue.Subject = is.Subject
	issue.Parent = is.Parent
	c.issues = append(c.issues, issue)
	if c.failFast {
		return re
	}
	return nil
}

// Issues returns the collected issues in the order they were recorded.
func (c *Collector) Issues() []Issue {
	return c.issues
}

// Counts returns the number of warnings and errors.
func Counts(issues []Issue) (warnings, errors int) {
	for _, is := range issues {
		switch is.Severity {
		case SeverityWarning:
			warnings++
		case SeverityError:
			errors++
		}
	}
	return warnings, errors
}

// Log writes each issue to the logger, warnings at warn level and errors at
// error level.
func Log(logger zerolog.Logger, issues []Issue) {
	for _, is := range issues {
		evt := logger.Warn()
		if is.Severity == SeverityError {
			evt = logger.Error()
		}
		evt.
			Int("row", is.Row).
			Str("kind", is.Kind).
			Str("subject", is.Subject).
			Str("parent", is.Parent).
			Msg(is.Message)
	}
}

// WriteFile writes the issues as a CSV file with a header row.
func WriteFile(path string, issues []Issue) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	if issues == nil {
		issues = []Issue{}
	}
	if err := gocsv.MarshalFile(&issues, f); err != nil {
		f.Close()
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return f.Close()
}
