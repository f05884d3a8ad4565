package report

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var bandTitles = map[Band]string{
	BandHigh:   "High priority",
	BandMedium: "Medium priority",
	BandLow:    "Low priority",
}

// Markdown renders the report as a GitHub flavored markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder

	name := "Company"
	if r.Profile != nil && r.Profile.Name != "" {
		name = r.Profile.Name
	}
	fmt.Fprintf(&b, "# Funding opportunities for %s\n\n", name)
	fmt.Fprintf(&b, "Generated %s after %d attempt(s).\n\n", r.GeneratedAt.Format("2006-01-02 15:04 MST"), r.Attempts)

	if r.Company.Overview != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Company.Overview)
	}

	if notes := r.flagNotes(); len(notes) > 0 {
		for _, n := range notes {
			fmt.Fprintf(&b, "> **Note:** %s\n", n)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "%s\n\n", r.Overview.Summary)
	b.WriteString("| Priority | Calls |\n|---|---|\n")
	for _, band := range Bands {
		fmt.Fprintf(&b, "| %s | %d |\n", bandTitles[band], r.Overview.ByBand[band])
	}
	b.WriteString("\n")

	if len(r.Recommendations) > 0 {
		b.WriteString("## Top recommendations\n\n")
		for i, e := range r.Recommendations {
			fmt.Fprintf(&b, "%d. **%s** (%s): %.2f%%\n", i+1, escape(e.Call.Title), e.Call.ID, e.Score.AdjustedPercent)
		}
		b.WriteString("\n")
	}

	if len(r.Entries) > 0 {
		b.WriteString("## Ranked calls\n\n")
		b.WriteString("| # | Call | Programme | Score | Raw | Confidence | Eligibility | Deadline |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, e := range r.Entries {
			fmt.Fprintf(&b, "| %d | %s | %s | %.2f%% | %.2f%% | %.2f | %s | %s |\n",
				e.Rank,
				callLink(e),
				escape(e.Call.Programme),
				e.Score.AdjustedPercent,
				e.Score.RawPercent,
				e.Score.Confidence,
				escape(e.Eligibility.Display()),
				deadline(e),
			)
		}
		b.WriteString("\n")

		for _, e := range r.Entries {
			r.writeEntry(&b, e)
		}
	}

	return b.String()
}

func (r *Report) writeEntry(b *strings.Builder, e Entry) {
	fmt.Fprintf(b, "### %d. %s\n\n", e.Rank, escape(e.Call.Title))
	fmt.Fprintf(b, "- Identifier: `%s`\n", e.Call.ID)
	fmt.Fprintf(b, "- Priority: %s (%s scoring)\n", bandTitles[e.Band], e.Score.Mode)
	if e.Call.BudgetText != "" {
		fmt.Fprintf(b, "- Budget: %s\n", escape(e.Call.BudgetText))
	}
	fmt.Fprintf(b, "- Eligibility: %s\n", escape(e.Eligibility.Display()))
	if len(e.Score.Penalties) > 0 {
		fmt.Fprintf(b, "- Confidence reduced: %s\n", strings.Join(e.Score.Penalties, ", "))
	}
	b.WriteString("\n| Criterion | Score | Weight |\n|---|---|---|\n")
	for _, s := range e.Score.Scores {
		fmt.Fprintf(b, "| %s | %.1f | %.2f |\n", s.Criterion, s.Value, s.Weight)
	}
	b.WriteString("\n")
	if e.Score.Rationale != "" {
		fmt.Fprintf(b, "%s\n\n", escape(e.Score.Rationale))
	}
	for _, item := range e.ActionItems {
		fmt.Fprintf(b, "- [ ] %s\n", item)
	}
	b.WriteString("\n")
}

func (r *Report) flagNotes() []string {
	var notes []string
	if r.Flags.NoMatches {
		notes = append(notes, "no matching calls were found.")
	}
	if r.Flags.LowConfidence {
		notes = append(notes, "results are low confidence; treat the ranking as indicative.")
	}
	if r.Flags.LowSpecificity {
		notes = append(notes, "the profile declares no domains, so the search was generic.")
	}
	return notes
}

// HTML renders the markdown report to an HTML document.
func (r *Report) HTML() (string, error) {
	var content bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(r.Markdown()), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>Funding report</title>" +
		"<style>body{font-family:sans-serif;max-width:1000px;margin:0 auto;padding:1rem;} " +
		"table{border-collapse:collapse;width:100%;} th,td{border:1px solid #ccc;padding:0.3rem 0.5rem;text-align:left;} " +
		"blockquote{background:#fef3c7;border-left:4px solid #f59e0b;margin:0;padding:0.3rem 0.8rem;}</style>" +
		"</head><body>" + content.String() + "</body></html>", nil
}

// HTMLToTmpFile writes the HTML rendering into a temp file.
func (r *Report) HTMLToTmpFile() (string, error) {
	html, err := r.HTML()
	if err != nil {
		return "", err
	}
	file, err := os.CreateTemp("", "report_*.html")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := file.WriteString(html); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func callLink(e Entry) string {
	if e.Call.URL == "" {
		return escape(e.Call.Title)
	}
	return fmt.Sprintf("[%s](%s)", escape(e.Call.Title), e.Call.URL)
}

func deadline(e Entry) string {
	switch {
	case !e.Call.Deadline.IsZero():
		return e.Call.Deadline.Format("2006-01-02")
	case e.Call.DeadlineText != "":
		return escape(e.Call.DeadlineText)
	default:
		return "unknown"
	}
}

var mdEscaper = strings.NewReplacer("|", "\\|", "\n", " ", "\r", "")

func escape(s string) string {
	return mdEscaper.Replace(s)
}
