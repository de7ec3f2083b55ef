package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/signintech/gopdf"
	"github.com/wcag-monitor/internal/model"
)

var ErrNoFont = errors.New("report font is not configured")

const (
	pageMargin = 40.0
	lineHeight = 16.0
	fontFamily = "report"
)

// PDFRenderer lays a report out on A4 pages using a TrueType font.
type PDFRenderer struct {
	fontPath string
}

func NewPDFRenderer(fontPath string) *PDFRenderer {
	return &PDFRenderer{fontPath: fontPath}
}

func (r *PDFRenderer) Enabled() bool {
	return r.fontPath != ""
}

func (r *PDFRenderer) Render(w io.Writer, task *model.Task, result *model.Result, now time.Time) error {
	if !r.Enabled() {
		return ErrNoFont
	}

	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	if err := pdf.AddTTFFont(fontFamily, r.fontPath); err != nil {
		return fmt.Errorf("load font: %w", err)
	}
	l := &layout{pdf: pdf, width: gopdf.PageSizeA4.W - 2*pageMargin, height: gopdf.PageSizeA4.H}
	l.newPage()

	if err := l.text(20, "Accessibility Report: "+task.Name); err != nil {
		return err
	}
	l.gap()
	for _, line := range []string{
		"URL: " + task.URL,
		"Standard: " + task.Standard,
		"Generated: " + now.UTC().Format(timeLayout),
	} {
		if err := l.text(10, line); err != nil {
			return err
		}
	}
	l.gap()

	if result == nil {
		if err := l.text(12, "This task has not been scanned yet."); err != nil {
			return err
		}
		return pdf.Write(w)
	}

	summary := []string{
		fmt.Sprintf("Score: %d/100", result.Score),
		fmt.Sprintf("Scanned: %s", result.Date.UTC().Format(timeLayout)),
		fmt.Sprintf("Errors: %d   Warnings: %d   Notices: %d   Total: %d",
			result.Count.Error, result.Count.Warning, result.Count.Notice, result.Count.Total),
	}
	for _, line := range summary {
		if err := l.text(12, line); err != nil {
			return err
		}
	}

	for _, group := range groupIssues(result.Issues) {
		l.gap()
		if err := l.text(16, fmt.Sprintf("%s (%d)", group.title, len(group.issues))); err != nil {
			return err
		}
		for _, issue := range group.issues {
			l.gap()
			if err := l.text(11, issue.Message); err != nil {
				return err
			}
			if err := l.text(9, "Rule: "+issue.Code); err != nil {
				return err
			}
			if issue.Selector != "" {
				if err := l.text(9, "Selector: "+issue.Selector); err != nil {
					return err
				}
			}
		}
	}
	return pdf.Write(w)
}

type layout struct {
	pdf    *gopdf.GoPdf
	width  float64
	height float64
}

func (l *layout) newPage() {
	l.pdf.AddPage()
	l.pdf.SetXY(pageMargin, pageMargin)
}

func (l *layout) gap() {
	l.pdf.Br(lineHeight / 2)
}

// text writes s wrapped to the page width, breaking pages as needed.
func (l *layout) text(size float64, s string) error {
	if err := l.pdf.SetFont(fontFamily, "", size); err != nil {
		return err
	}
	lines, err := l.pdf.SplitText(s, l.width)
	if err != nil {
		// SplitText fails on empty input only
		lines = []string{s}
	}
	height := size * 1.4
	for _, line := range lines {
		if l.pdf.GetY()+height > l.height-pageMargin {
			l.newPage()
		}
		l.pdf.SetX(pageMargin)
		if err := l.pdf.Cell(nil, line); err != nil {
			return err
		}
		l.pdf.Br(height)
	}
	return nil
}
