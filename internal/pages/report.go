package pages

import (
	"fmt"
	"strings"

	"sales-dashboard/internal/models"
)

const maxIssueExamples = 3

// ReportHeader summarizes the counts, e.g. "3 warnings · 0 errors".
func ReportHeader(s *models.ValidationSummary) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%d %s · %d %s",
		s.WarningCount, plural(s.WarningCount, "warning"),
		s.ErrorCount, plural(s.ErrorCount, "error"))
}

// IssueExamples lists up to three examples, followed by an ellipsis when
// the backend sent more.
func IssueExamples(issue models.ValidationIssue) string {
	if len(issue.Examples) == 0 {
		return ""
	}

	shown := issue.Examples
	if len(shown) > maxIssueExamples {
		shown = shown[:maxIssueExamples]
	}
	parts := make([]string, 0, len(shown))
	for _, ex := range shown {
		switch {
		case ex.Message != "":
			parts = append(parts, ex.Message)
		case ex.Row != nil:
			parts = append(parts, fmt.Sprintf("Row %d", *ex.Row))
		default:
			parts = append(parts, fmt.Sprintf("%v", ex.Value))
		}
	}

	out := strings.Join(parts, ", ")
	if len(issue.Examples) > maxIssueExamples {
		out += "…"
	}
	return out
}

// IssueCount and IssuePercentage render a dash for absent values.
func IssueCount(issue models.ValidationIssue) string {
	if issue.Count == nil {
		return "—"
	}
	return fmt.Sprintf("%d", *issue.Count)
}

func IssuePercentage(issue models.ValidationIssue) string {
	if issue.Percentage == nil {
		return "—"
	}
	return fmt.Sprintf("%g%%", *issue.Percentage)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
