package model

import "time"

// DuplicateReport is written as duplicates.json / duplicates.md
type DuplicateReport struct {
	GeneratedAt       time.Time               `json:"generated_at"`
	TotalDuplicates   int                     `json:"total_duplicates"`
	ByMethod          map[DetectionMethod]int `json:"by_method"`
	KeywordCandidates int                     `json:"keyword_candidates"` // Pass 1 output before confirmation
	Thresholds        Thresholds              `json:"thresholds"`
	Details           []DuplicateDetail       `json:"details"`
	Decisions         []RemovalDecision       `json:"decisions"`
	Clusters          [][]RecordID            `json:"clusters,omitempty"` // Connected components with more than two members
	RemovedIDs        []RecordID              `json:"removed_ids"`
}

// DuplicateDetail describes one reported pair
type DuplicateDetail struct {
	Pair            [2]RecordID     `json:"pair"`
	SimilarityScore float64         `json:"similarity_score"`
	Method          DetectionMethod `json:"method"`
	Statements      [2]string       `json:"statements"`
	Answers         [2]bool         `json:"answers"`
}

// ResolutionRule names the rule that picked a loser
type ResolutionRule string

const (
	RuleCitation ResolutionRule = "citation" // Only the winner carries a citation
	RuleLength   ResolutionRule = "length"   // Loser has the shorter statement
	RuleID       ResolutionRule = "id"       // Tie: the higher id loses
)

// RemovalDecision records the outcome of resolving one pair
type RemovalDecision struct {
	Pair   [2]RecordID    `json:"pair"`
	Winner RecordID       `json:"winner"`
	Loser  RecordID       `json:"loser"`
	Rule   ResolutionRule `json:"rule"`
}

// CategoryAction is what the validator did with a record
type CategoryAction string

const (
	ActionNone         CategoryAction = "none"
	ActionAutoFixed    CategoryAction = "auto_fixed"
	ActionManualReview CategoryAction = "manual_review"
	ActionRemove       CategoryAction = "remove"
)

// CategoryReport is written as categories.json / categories.md
type CategoryReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Summary     CategorySummary  `json:"summary"`
	Details     []CategoryDetail `json:"details"`
	Fixes       []CategoryFix    `json:"fixes"`
}

// CategorySummary counts validator outcomes
type CategorySummary struct {
	Total        int `json:"total"`
	Valid        int `json:"valid"`
	Invalid      int `json:"invalid"`
	Warnings     int `json:"warnings"` // Valid records that still carry issues
	AutoFixed    int `json:"auto_fixed"`
	ManualReview int `json:"manual_review"`
	Removed      int `json:"removed"`
}

// CategoryDetail lists the issues for one record with at least one issue
type CategoryDetail struct {
	RecordID          RecordID          `json:"record_id"`
	Category          string            `json:"category"`
	Valid             bool              `json:"valid"`
	Action            CategoryAction    `json:"action"`
	SuggestedCategory string            `json:"suggested_category,omitempty"`
	AdvisorCategory   string            `json:"advisor_category,omitempty"` // Advisory only, never applied
	Statement         string            `json:"statement"`
	Issues            []ValidationIssue `json:"issues"`
}

// CategoryFix is a logged category rewrite
type CategoryFix struct {
	RecordID RecordID `json:"record_id"`
	From     string   `json:"from"`
	To       string   `json:"to"`
}

// Evaluation buckets a quality score
type Evaluation string

const (
	EvalExcellent Evaluation = "excellent"
	EvalGood      Evaluation = "good"
	EvalPoor      Evaluation = "poor"
)

// QualityReport is written as quality.json / quality.md
type QualityReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Summary     QualitySummary  `json:"summary"`
	Details     []QualityDetail `json:"details"`
}

// QualitySummary aggregates scores across the corpus
type QualitySummary struct {
	Total        int               `json:"total"`
	AverageScore float64           `json:"average_score"`
	Excellent    int               `json:"excellent"`
	Good         int               `json:"good"`
	Poor         int               `json:"poor"`
	IssueCounts  map[IssueKind]int `json:"issue_counts"`
}

// QualityDetail is the score of one record
type QualityDetail struct {
	RecordID   RecordID          `json:"record_id"`
	Score      int               `json:"score"`
	Evaluation Evaluation        `json:"evaluation"`
	Issues     []ValidationIssue `json:"issues,omitempty"`
}

// RunReport summarises a complete pipeline run (run.json / run.md)
type RunReport struct {
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Counts     CorpusMeta      `json:"counts"`
	Duplicates DuplicateCounts `json:"duplicates"`
	Categories CategorySummary `json:"categories"`
	Quality    QualitySummary  `json:"quality"`
}

// DuplicateCounts is the run-level view of the duplicate report
type DuplicateCounts struct {
	Total    int                     `json:"total"`
	ByMethod map[DetectionMethod]int `json:"by_method"`
	Removed  int                     `json:"removed"`
}

// NewMethodCounts returns a by-method map with every method present
func NewMethodCounts() map[DetectionMethod]int {
	return map[DetectionMethod]int{
		MethodKeyword:        0,
		MethodEditDistance:   0,
		MethodOppositeAnswer: 0,
	}
}
