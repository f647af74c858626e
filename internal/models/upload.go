package models

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type IssueExample struct {
	Row     *int   `json:"row,omitempty"`
	Value   any    `json:"value,omitempty"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message,omitempty"`
}

type ValidationIssue struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	Severity   Severity       `json:"severity"`
	Column     string         `json:"column,omitempty"`
	Count      *int           `json:"count,omitempty"`
	Percentage *float64       `json:"percentage,omitempty"`
	Examples   []IssueExample `json:"examples,omitempty"`
}

type ValidationSummary struct {
	TotalRows    int  `json:"total_rows"`
	ValidRows    int  `json:"valid_rows"`
	WarningCount int  `json:"warning_count"`
	ErrorCount   int  `json:"error_count"`
	HasErrors    bool `json:"has_errors"`
	HasWarnings  bool `json:"has_warnings"`
}

type UploadResponse struct {
	Message      string             `json:"message"`
	RowsInserted int                `json:"rows_inserted"`
	Filename     string             `json:"filename"`
	Warnings     []ValidationIssue  `json:"warnings,omitempty"`
	Errors       []ValidationIssue  `json:"errors,omitempty"`
	Summary      *ValidationSummary `json:"summary,omitempty"`
}

// NeedsReport is true when the backend flagged anything worth showing.
func (u *UploadResponse) NeedsReport() bool {
	return u.Summary != nil && (u.Summary.HasWarnings || u.Summary.HasErrors)
}
