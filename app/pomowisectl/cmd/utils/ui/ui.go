// Package ui renders installer output: the download bar, warnings, the final
// summary and the remediation block shown on fatal errors.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#7D56F4") // Purple
	successColor = lipgloss.Color("#73F59F") // Green
	errorColor   = lipgloss.Color("#FF6B6B") // Red
	warningColor = lipgloss.Color("#FFE066") // Yellow
	mutedColor   = lipgloss.Color("#626262") // Gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	errorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(errorColor).
			Padding(0, 1)

	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(successColor).
			Padding(0, 1)

	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(10)
)

// Remediation is the advice printed under every fatal install error.
var Remediation = []string{
	"Check your internet connection and any proxy settings (HTTPS_PROXY).",
	"Try again in a few minutes, the release host may be temporarily unavailable.",
	"Build from source instead: pomowisectl build",
}

// Title renders a heading line.
func Title(text string) string {
	return titleStyle.Render(text)
}

// Muted renders secondary text.
func Muted(text string) string {
	return mutedStyle.Render(text)
}

// Warning renders a single non-fatal warning line.
func Warning(text string) string {
	return warningStyle.Render("⚠️  " + text)
}

// Success renders a single confirmation line.
func Success(text string) string {
	return successStyle.Render("✅ " + text)
}

// ErrorBlock renders err followed by the remediation steps inside a box.
func ErrorBlock(title string, err error, steps []string) string {
	var b strings.Builder
	b.WriteString(errorStyle.Render("❌ " + title))
	b.WriteString("\n\n")
	b.WriteString(err.Error())
	if len(steps) > 0 {
		b.WriteString("\n\n")
		b.WriteString(mutedStyle.Render("What you can do:"))
		for _, s := range steps {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}
	return errorBoxStyle.Render(b.String())
}

// Field is one label/value row of a summary.
type Field struct {
	Label string
	Value string
}

// Summary renders a boxed list of fields under a title.
func Summary(title string, fields []Field) string {
	rows := make([]string, 0, len(fields)+1)
	rows = append(rows, successStyle.Bold(true).Render(title))
	for _, f := range fields {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(f.Label), f.Value))
	}
	return summaryBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// ProgressBar returns a progress callback that draws a byte-count bar on w.
// The bar is created lazily on the first event, since the total is only known
// once the response headers arrived.
func ProgressBar(w io.Writer, description string) (func(downloaded, total int64, percent float64), func()) {
	d := &downloadBar{w: w, description: description}
	return d.update, d.done
}

type downloadBar struct {
	w           io.Writer
	description string
	bar         *progressbar.ProgressBar
	last        int64
}

func (d *downloadBar) update(downloaded, total int64, percent float64) {
	// a retry streams the archive from the start again
	if d.bar != nil && downloaded < d.last {
		_ = d.bar.Clear()
		d.bar = nil
	}
	if d.bar == nil {
		d.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(d.w),
			progressbar.OptionSetDescription(d.description),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}
	d.last = downloaded
	_ = d.bar.Set64(downloaded)
}

func (d *downloadBar) done() {
	if d.bar != nil {
		_ = d.bar.Finish()
		fmt.Fprintln(d.w)
		d.bar = nil
		d.last = 0
	}
}
