// Package ui provides terminal output for the flashcards CLI.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr

	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Init applies the global output flags.
func Init(noColor bool) {
	if noColor {
		color.NoColor = true
	}
}

func Success(format string, args ...any) {
	green.Fprintf(out, "✓ %s\n", fmt.Sprintf(format, args...))
}

func Error(format string, args ...any) {
	red.Fprintf(errOut, "✗ %s\n", fmt.Sprintf(format, args...))
}

func Warning(format string, args ...any) {
	yellow.Fprintf(out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

func Info(format string, args ...any) {
	cyan.Fprintf(out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Section displays an underlined header.
func Section(title string) {
	bold.Fprintf(out, "\n%s\n", title)
	fmt.Fprintf(out, "%s\n\n", strings.Repeat("=", len([]rune(title))))
}

// Table displays rows aligned under headers.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	separator := make([]string, len(headers))
	for i, h := range headers {
		separator[i] = strings.Repeat("-", len([]rune(h)))
	}
	fmt.Fprintln(w, strings.Join(separator, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

// Spinner shows indeterminate progress on stderr.
type Spinner struct {
	spinner *spinner.Spinner
}

func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = errOut
	return &Spinner{spinner: s}
}

func (s *Spinner) Start() { s.spinner.Start() }
func (s *Spinner) Stop()  { s.spinner.Stop() }

func (s *Spinner) UpdateMessage(message string) {
	s.spinner.Lock()
	s.spinner.Suffix = " " + message
	s.spinner.Unlock()
}

// ProgressBar counts flashcards as they stream in.
type ProgressBar struct {
	bar *progressbar.ProgressBar
	max int64
}

func NewProgressBar(total int64, description string) *ProgressBar {
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(errOut),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(errOut, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar, max: total}
}

// Set moves the bar to current, growing the total when current exceeds it.
func (p *ProgressBar) Set(current int64) {
	if current > p.max {
		p.max = current
		p.bar.ChangeMax64(current)
	}
	_ = p.bar.Set64(current)
}

func (p *ProgressBar) Finish() {
	_ = p.bar.Finish()
}

// FormatDuration rounds d for display.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
