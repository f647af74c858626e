package pages

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/testutil"
	"sales-dashboard/internal/toast"
)

func TestUpload_RequiresFile(t *testing.T) {
	h := newHarness(t)
	u := NewUpload(h.client, h.toasts, observability.Discard())

	u.Upload(context.Background())

	assert.Equal(t, []string{"Please select a file first"}, h.messages())
	assert.Equal(t, toast.Info, h.lastToast(t).Type)
	assert.Zero(t, h.backend.Total())
}

func TestUpload_QualityReportScenario(t *testing.T) {
	h := newHarness(t)
	u := NewUpload(h.client, h.toasts, observability.Discard())

	u.SelectFile("q1.csv", make([]byte, 2048))
	assert.Equal(t, "2.00 KB", u.View().FileSize)

	u.Upload(context.Background())

	v := u.View()
	require.NotNil(t, v.Result)
	assert.Equal(t, 120, v.Result.RowsInserted)
	assert.Equal(t, "q1.csv", v.Result.Filename)
	assert.True(t, v.ShowReport)
	assert.False(t, v.ReportOpen, "report starts collapsed")
	assert.Equal(t, "3 warnings · 0 errors", ReportHeader(v.Result.Summary))
	assert.Equal(t, []string{"Successfully uploaded 120 rows"}, h.messages())

	u.ToggleReport()
	v = u.View()
	assert.True(t, v.ReportOpen)
	assert.Len(t, v.Result.Warnings, 3)
	assert.Empty(t, v.Result.Errors)
}

func TestUpload_SelectFileClearsResult(t *testing.T) {
	h := newHarness(t)
	u := NewUpload(h.client, h.toasts, observability.Discard())

	u.SelectFile("q1.csv", []byte("a"))
	u.Upload(context.Background())
	require.NotNil(t, u.View().Result)

	u.SelectFile("q2.csv", []byte("b"))
	v := u.View()
	assert.Nil(t, v.Result)
	assert.Equal(t, "q2.csv", v.FileName)
}

func TestUpload_Failure(t *testing.T) {
	h := newHarness(t)
	h.backend.Handle("POST /upload/csv", testutil.Fail(http.StatusBadRequest, "Missing required columns: amount"))
	u := NewUpload(h.client, h.toasts, observability.Discard())

	u.SelectFile("bad.csv", []byte("x"))
	u.Upload(context.Background())

	v := u.View()
	assert.Equal(t, Failed, v.Phase)
	assert.Nil(t, v.Result)
	assert.False(t, v.Uploading)
	assert.Equal(t, []string{"Missing required columns: amount"}, h.messages())
}

func TestIssueExamples(t *testing.T) {
	issue := testutil.SampleUpload().Warnings[0]
	assert.Equal(t, "Row 4, Row 9, Row 17…", IssueExamples(issue))
	assert.Equal(t, "2", IssueCount(issue))
	assert.Equal(t, "—", IssuePercentage(issue))

	withMessages := models.ValidationIssue{Examples: []models.IssueExample{{Message: "bad date"}, {Row: models.Int(3)}}}
	assert.Equal(t, "bad date, Row 3", IssueExamples(withMessages))
	assert.Equal(t, "0.8%", IssuePercentage(testutil.SampleUpload().Warnings[1]))
	assert.Empty(t, IssueExamples(models.ValidationIssue{}))
}

func TestReportHeader_Singular(t *testing.T) {
	assert.Equal(t, "1 warning · 1 error", ReportHeader(&models.ValidationSummary{WarningCount: 1, ErrorCount: 1}))
	assert.Empty(t, ReportHeader(nil))
}
