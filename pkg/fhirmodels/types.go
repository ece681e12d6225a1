package fhirmodels

// Common CentraXX FHIR constants used across the application.

// System is the coding and identifier system of the CentraXX importer.
const System = "urn:centraxx"

// Resource types written by fhirbuild.
const (
	ResourceSpecimen    = "Specimen"
	ResourcePatient     = "Patient"
	ResourceObservation = "Observation"
)

// Specimen status values.
const (
	SpecimenAvailable   = "available"
	SpecimenUnavailable = "unavailable"
)

// ObservationStatusUnknown is the status of every imported finding.
const ObservationStatusUnknown = "unknown"

// Extension URLs understood by the CentraXX FHIR importer.
const (
	ExtUpdateWithOverwrite  = "https://fhir.centraxx.de/extension/updateWithOverwrite"
	ExtOrganizationUnit     = "https://fhir.centraxx.de/extension/sample/organizationUnit"
	ExtSampleCategory       = "https://fhir.centraxx.de/extension/sampleCategory"
	ExtSprec                = "https://fhir.centraxx.de/extension/sprec"
	ExtUseSprec             = "https://fhir.centraxx.de/extension/sprec/useSprec"
	ExtStockProcessing      = "https://fhir.centraxx.de/extension/sprec/stockProcessing"
	ExtStockProcessingDate  = "https://fhir.centraxx.de/extension/sprec/stockProcessingDate"
	ExtSecondProcessing     = "https://fhir.centraxx.de/extension/sprec/secondProcessing"
	ExtSecondProcessingDate = "https://fhir.centraxx.de/extension/sprec/secondProcessingDate"
	ExtSampleLocation       = "https://fhir.centraxx.de/extension/sample/sampleLocation"
	ExtSampleLocationPath   = "https://fhir.centraxx.de/extension/sample/sampleLocationPath"
	ExtXPosition            = "https://fhir.centraxx.de/extension/sample/xPosition"
	ExtYPosition            = "https://fhir.centraxx.de/extension/sample/yPosition"
	ExtDerivalDate          = "https://fhir.centraxx.de/extension/sample/derivalDate"
	ExtRepositionDate       = "https://fhir.centraxx.de/extension/sample/repositionDate"
	ExtConcentration        = "https://fhir.centraxx.de/extension/sample/concentration"
)

// Code systems for coded observation values.
const (
	SystemUsageEntry = "urn:centraxx:CodeSystem/UsageEntry-x"
	SystemValueList  = "urn:centraxx:CodeSystem/ValueList-"
)

// SenderComponentCode is the component code carrying a finding's sender.
const SenderComponentCode = "EINS_CODE"

// DefaultPatientIDContainer is the id container of a subject when none is given.
const DefaultPatientIDContainer = "LIMSPSN"

// CentraXX versions. Version 3 expects bundles typed "Bundle", version 4
// expects the resource type of the bundled entries.
const (
	CXX3 = 3
	CXX4 = 4
)
