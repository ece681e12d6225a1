package fhir

import "fmt"

// OperationOutcome severity levels per FHIR R4 spec.
const (
	IssueSeverityFatal = "fatal"
	IssueSeverityError = "error"
)

// OperationOutcome issue type codes per FHIR R4 spec.
const (
	IssueTypeStructure = "structure"
	IssueTypeRequired  = "required"
	IssueTypeValue     = "value"
)

// HasErrors returns true if the outcome contains any error or fatal issues.
func (o *OperationOutcome) HasErrors() bool {
	for _, issue := range o.Issue {
		if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
			return true
		}
	}
	return false
}

// Error joins the diagnostics of all error issues.
func (o *OperationOutcome) Error() string {
	msg := ""
	for _, issue := range o.Issue {
		if issue.Severity != IssueSeverityError && issue.Severity != IssueSeverityFatal {
			continue
		}
		if msg != "" {
			msg += "; "
		}
		msg += issue.Diagnostics
	}
	return msg
}

// RequiredFieldIssue returns an issue for a missing required field.
func RequiredFieldIssue(field string) OperationOutcomeIssue {
	return OperationOutcomeIssue{
		Severity:    IssueSeverityError,
		Code:        IssueTypeRequired,
		Diagnostics: fmt.Sprintf("%s is required", field),
		Expression:  []string{field},
	}
}
