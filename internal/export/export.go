// Package export renders generated papers as markdown or plain text.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/hazyhaar/paperforge/internal/paper"
)

// Format selects an output rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// sectionTitles maps section keys to their display headings.
var sectionTitles = map[string]string{
	"abstract":          "Abstract",
	"introduction":      "Introduction",
	"literature_review": "Literature Review",
	"methodology":       "Methodology",
	"results":           "Results",
	"discussion":        "Discussion",
	"conclusion":        "Conclusion",
}

// ParseFormat validates a format string, defaulting to markdown.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "plain":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// Extension returns the file extension for a format.
func (f Format) Extension() string {
	if f == FormatText {
		return "txt"
	}
	return "md"
}

// ContentType returns the MIME type for a format.
func (f Format) ContentType() string {
	if f == FormatText {
		return "text/plain; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Write renders the paper to w. Sections appear in the canonical order
// and absent sections are skipped. Output depends only on the title
// and content, so exporting the same paper twice yields identical
// bytes.
func Write(w io.Writer, title string, content map[string]string, format Format) error {
	switch format {
	case FormatText:
		return writeText(w, title, content)
	default:
		return writeMarkdown(w, title, content)
	}
}

// Render is Write into a string.
func Render(title string, content map[string]string, format Format) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, title, content, format); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeMarkdown(w io.Writer, title string, content map[string]string) error {
	if title != "" {
		if _, err := fmt.Fprintf(w, "# %s\n", title); err != nil {
			return err
		}
	}
	for _, section := range paper.SectionOrder {
		body, ok := content[section]
		if !ok || body == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n## %s\n\n%s\n", sectionTitles[section], strings.TrimSpace(body)); err != nil {
			return err
		}
	}
	return nil
}

func writeText(w io.Writer, title string, content map[string]string) error {
	if title != "" {
		if _, err := fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len(title))); err != nil {
			return err
		}
	}
	for _, section := range paper.SectionOrder {
		body, ok := content[section]
		if !ok || body == "" {
			continue
		}
		heading := sectionTitles[section]
		if _, err := fmt.Fprintf(w, "\n%s\n%s\n\n%s\n", heading, strings.Repeat("-", len(heading)), strings.TrimSpace(body)); err != nil {
			return err
		}
	}
	return nil
}
