package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

const ruleWidth = 60

// KB formats n bytes as kibibytes with two decimals.
func KB(n int64) string {
	return strconv.FormatFloat(float64(n)/1024, 'f', 2, 64)
}

// Render writes the human-readable size table for s. Colors are only used
// when w is a terminal.
func Render(w io.Writer, title string, s Summary) error {
	return renderTable(w, lipgloss.NewRenderer(w), title, s)
}

// renderTable writes the table to w using r for styling. r may be bound to a
// different writer than w, so a wrapped terminal keeps its color profile.
func renderTable(w io.Writer, r *lipgloss.Renderer, title string, s Summary) error {
	headerStyle := r.NewStyle().Bold(true)
	warnStyle := r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	okStyle := r.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle := r.NewStyle().Faint(true)

	rule := strings.Repeat("━", ruleWidth)
	p := message.NewPrinter(language.English)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n", headerStyle.Render(fmt.Sprintf("[%s] asset sizes", title)))
	fmt.Fprintln(&b, rule)

	for _, rec := range s.Assets {
		marker := okStyle.Render("✓")
		if rec.Oversized {
			marker = warnStyle.Render("⚠")
		}
		suffix := ""
		if rec.Entry {
			suffix = " " + dimStyle.Render("[entry]")
		}
		fmt.Fprintf(&b, "%s %-40s %10s KB%s\n", marker, rec.Name, KB(rec.SizeBytes), suffix)
	}
	for _, f := range s.Failed {
		fmt.Fprintf(&b, "%s %-40s %10s KB\n", warnStyle.Render("?"), f.Name, "unknown")
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "total: %s KB (%s bytes)\n", KB(s.TotalBytes), p.Sprintf("%d", s.TotalBytes))
	fmt.Fprintf(&b, "oversized (> %.0f KB): %d\n", float64(s.ThresholdBytes)/1024, s.OversizedCount)
	if len(s.Failed) > 0 {
		fmt.Fprintf(&b, "size unknown: %d\n", len(s.Failed))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Format names a machine-readable summary encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Encode writes s to w in the given format.
func Encode(w io.Writer, title string, s Summary, format Format) error {
	switch format {
	case FormatTable, "":
		return Render(w, title, s)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", format)
	}
}
