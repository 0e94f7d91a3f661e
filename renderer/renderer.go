// Package renderer renders the board as markdown.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
)

//go:embed *.md
var templates embed.FS

// ReportRenderOptions selects the sections of a report.
type ReportRenderOptions struct {
	SkipQuotes  bool // Do not render the quotes table.
	SkipSummary bool // Do not render the portfolio total.
}

// RenderReport renders r to markdown.
func RenderReport(r *Report, opts ReportRenderOptions) string {
	partials := map[string]string{
		"report_title":    "report_title.md",
		"report_holdings": "report_holdings.md",
		"report_errors":   "report_errors.md",
	}
	// An empty file name results in an empty template.
	if !opts.SkipQuotes {
		partials["report_quotes"] = "report_quotes.md"
	} else {
		partials["report_quotes"] = ""
	}
	if !opts.SkipSummary {
		partials["report_summary"] = "report_summary.md"
	} else {
		partials["report_summary"] = ""
	}
	return renderTemplate("report", "report.md", partials, r)
}

// renderTemplate renders a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		var content []byte
		if file != "" {
			content, err = fs.ReadFile(templates, file)
			if err != nil {
				return fmt.Sprintf("error reading partial template %q: %v", file, err)
			}
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
