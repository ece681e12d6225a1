package fhir

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/numlims/fhirbuild/pkg/fhirmodels"
)

// subjectRequired lists the resource types that must name their patient.
var subjectRequired = map[string]bool{
	fhirmodels.ResourceSpecimen:    true,
	fhirmodels.ResourceObservation: true,
}

// ValidationResult holds the results of an entry validation.
type ValidationResult struct {
	Valid  bool
	Issues []OperationOutcomeIssue
}

// ToOperationOutcome converts a ValidationResult into an OperationOutcome.
func (vr *ValidationResult) ToOperationOutcome() *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue:        vr.Issues,
	}
}

// Validator performs the minimal required-field checks the CentraXX importer
// relies on. It does not validate against FHIR profiles.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateEntry checks a transaction entry: the request must carry a method
// and url, and posted resources need a resourceType, an id and, for
// specimens and observations, a subject identifier.
func (v *Validator) ValidateEntry(entry BundleEntry) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if entry.Request == nil {
		result.addRequired("request")
		return result
	}
	method := strings.ToUpper(entry.Request.Method)
	if method != MethodPost && method != MethodDelete {
		result.add(OperationOutcomeIssue{
			Severity:    IssueSeverityError,
			Code:        IssueTypeValue,
			Diagnostics: fmt.Sprintf("request.method must be POST or DELETE; got '%s'", entry.Request.Method),
			Expression:  []string{"request.method"},
		})
	}
	if entry.Request.URL == "" {
		result.addRequired("request.url")
	}

	if len(entry.Resource) == 0 {
		if method == MethodPost {
			result.addRequired("resource")
		}
		return result
	}

	var resource map[string]interface{}
	if err := json.Unmarshal(entry.Resource, &resource); err != nil {
		result.add(OperationOutcomeIssue{
			Severity:    IssueSeverityError,
			Code:        IssueTypeStructure,
			Diagnostics: "invalid JSON: " + err.Error(),
		})
		return result
	}

	rt, _ := resource["resourceType"].(string)
	if rt == "" {
		result.addRequired("resourceType")
	}
	if id, _ := resource["id"].(string); id == "" {
		result.addRequired("id")
	}
	if subjectRequired[rt] && stringAt(resource, "subject", "identifier", "value") == "" {
		result.addRequired("subject.identifier.value")
	}
	return result
}

// ValidateBundle validates every entry of a bundle. Issue expressions are
// prefixed with the entry position.
func (v *Validator) ValidateBundle(bundle *Bundle) *ValidationResult {
	result := &ValidationResult{Valid: true}

	if bundle.Type != bundleTypeTransaction {
		result.add(OperationOutcomeIssue{
			Severity:    IssueSeverityError,
			Code:        IssueTypeValue,
			Diagnostics: fmt.Sprintf("bundle type must be 'transaction'; got '%s'", bundle.Type),
			Expression:  []string{"type"},
		})
	}

	for i, entry := range bundle.Entry {
		for _, issue := range v.ValidateEntry(entry).Issues {
			for j, expr := range issue.Expression {
				issue.Expression[j] = fmt.Sprintf("entry[%d].%s", i, expr)
			}
			result.add(issue)
		}
	}
	return result
}

func (vr *ValidationResult) add(issue OperationOutcomeIssue) {
	if issue.Severity == IssueSeverityError || issue.Severity == IssueSeverityFatal {
		vr.Valid = false
	}
	vr.Issues = append(vr.Issues, issue)
}

func (vr *ValidationResult) addRequired(field string) {
	vr.add(RequiredFieldIssue(field))
}

// stringAt follows path through nested objects and returns the string found
// there, or "".
func stringAt(m map[string]interface{}, path ...string) string {
	var cur interface{} = m
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return ""
		}
		cur = obj[key]
	}
	s, _ := cur.(string)
	return s
}
