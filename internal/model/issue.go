package model

// Severity grades a validation issue
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// IssueKind classifies a validation or quality issue
type IssueKind string

const (
	// Category validator
	IssueExcludedReference IssueKind = "excluded_reference_used"     // Out-of-scope domain marker
	IssueCategoryMismatch  IssueKind = "category_reference_mismatch" // Marker forbidden for this category
	IssueUnknownCategory   IssueKind = "unknown_category"            // Category not in the closed set, or lookup failed
	IssueNoAllowedMarker   IssueKind = "no_allowed_reference"        // None of the category's markers present

	// Quality scorer
	IssueAmbiguousReferent IssueKind = "ambiguous_referent"
	IssueVagueQuantifier   IssueKind = "vague_quantifier"
	IssueTooShort          IssueKind = "too_short"
	IssueTooLong           IssueKind = "too_long"
	IssueDoubleNegative    IssueKind = "double_negative"
	IssueMissingCitation   IssueKind = "missing_citation"
)

// ValidationIssue is a single finding attached to a record
type ValidationIssue struct {
	RecordID RecordID  `json:"record_id"`
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	Penalty  int       `json:"penalty,omitempty"` // Points deducted by the quality scorer
}

// HasHigh reports whether any issue is high severity
func HasHigh(issues []ValidationIssue) bool {
	for _, is := range issues {
		if is.Severity == SeverityHigh {
			return true
		}
	}
	return false
}
