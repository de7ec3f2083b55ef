package report

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcag-monitor/internal/model"
)

var generated = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func sampleTask() *model.Task {
	return &model.Task{Name: "My Site!", URL: "https://example.com", Standard: model.StandardWCAG2AA}
}

func sampleResult() *model.Result {
	issues := []model.Issue{
		{Type: model.IssueNotice, Code: "n1", Message: "Check heading order"},
		{Type: model.IssueError, Code: "e2", Message: "Img element missing alt", Selector: "#logo", Context: `<img id="logo">`},
		{Type: model.IssueError, Code: "e1", Message: "Form field without label", Selector: "input"},
		{Type: model.IssueWarning, Code: "w1", Message: "Low contrast"},
	}
	return &model.Result{
		Date:   generated.Add(-time.Hour),
		Count:  model.CountIssues(issues),
		Score:  76,
		Ignore: model.StringList{"WCAG2AA.H25"},
		Issues: issues,
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "My-Site--report.pdf", FileName("My Site!", "pdf"))
	assert.Equal(t, "home-report.md", FileName("home", "md"))
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleTask(), sampleResult(), generated)

	assert.Contains(t, md, "# Accessibility Report: My Site!")
	assert.Contains(t, md, "**Standard:** WCAG2AA")
	assert.Contains(t, md, "score of **76/100**")
	assert.Contains(t, md, "| Errors | 2 |")
	assert.Contains(t, md, "`WCAG2AA.H25`")
	assert.Contains(t, md, "- **Selector:** `#logo`")
	assert.Contains(t, md, "```html\n<img id=\"logo\">\n```")

	errorsAt := bytes.Index([]byte(md), []byte("## Errors (2)"))
	warningsAt := bytes.Index([]byte(md), []byte("## Warnings (1)"))
	noticesAt := bytes.Index([]byte(md), []byte("## Notices (1)"))
	assert.True(t, errorsAt >= 0 && errorsAt < warningsAt && warningsAt < noticesAt)
	assert.Less(t, bytes.Index([]byte(md), []byte("`e1`")), bytes.Index([]byte(md), []byte("`e2`")))
}

func TestMarkdown_NotScanned(t *testing.T) {
	md := Markdown(sampleTask(), nil, generated)
	assert.Contains(t, md, "has not been scanned yet")
	assert.NotContains(t, md, "## Summary")
}

func TestPDFRenderer_RequiresFont(t *testing.T) {
	r := NewPDFRenderer("")
	assert.False(t, r.Enabled())
	assert.ErrorIs(t, r.Render(&bytes.Buffer{}, sampleTask(), sampleResult(), generated), ErrNoFont)
}

func TestPDFRenderer_Render(t *testing.T) {
	font := os.Getenv("WCAG_TEST_FONT")
	if font == "" {
		font = "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf"
	}
	if _, err := os.Stat(font); err != nil {
		t.Skipf("no TrueType font available at %s", font)
	}

	result := sampleResult()
	for i := 0; i < 80; i++ {
		result.Issues = append(result.Issues, model.Issue{Type: model.IssueNotice, Code: "bulk", Message: "Repeated notice to force a page break"})
	}

	var buf bytes.Buffer
	require.NoError(t, NewPDFRenderer(font).Render(&buf, sampleTask(), result, generated))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}
