package loop

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// writef writes formatted output, ignoring errors.
// Use for non-critical output where write failures are acceptable.
func writef(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// logger writes one styled line per event.
type logger struct {
	out     io.Writer
	styles  Styles
	verbose bool
}

func newLogger(out io.Writer, verbose bool) logger {
	if out == nil {
		out = io.Discard
	}
	return logger{out: out, styles: DefaultStyles(), verbose: verbose}
}

func (l logger) header(format string, args ...interface{}) {
	writef(l.out, "%s\n", l.styles.Title.Render(fmt.Sprintf(format, args...)))
}

func (l logger) step(format string, args ...interface{}) {
	writef(l.out, "  %s %s\n", l.styles.Muted.Render(IconStep), fmt.Sprintf(format, args...))
}

func (l logger) ok(format string, args ...interface{}) {
	writef(l.out, "  %s %s\n", l.styles.Success.Render(IconSuccess), fmt.Sprintf(format, args...))
}

func (l logger) warn(format string, args ...interface{}) {
	writef(l.out, "  %s %s\n", l.styles.Warning.Render(IconWarning), fmt.Sprintf(format, args...))
}

func (l logger) fail(format string, args ...interface{}) {
	writef(l.out, "  %s %s\n", l.styles.Error.Render(IconFailed), fmt.Sprintf(format, args...))
}

func (l logger) timeout(format string, args ...interface{}) {
	writef(l.out, "  %s %s\n", l.styles.Warning.Render(IconTimeout), fmt.Sprintf(format, args...))
}

func (l logger) debug(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	writef(l.out, "    %s\n", l.styles.Muted.Render(fmt.Sprintf(format, args...)))
}

// FormatDuration formats a duration in a human-readable way (e.g., "2m34s", "1h12m").
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatCost formats a USD amount with three decimals.
func FormatCost(c float64) string {
	return fmt.Sprintf("$%.3f", c)
}

// formatIteration renders "(n/max)", or "(n)" when runs are unbounded.
func formatIteration(ordinal, maxRuns int) string {
	if maxRuns > 0 {
		return fmt.Sprintf("(%d/%d)", ordinal, maxRuns)
	}
	return fmt.Sprintf("(%d)", ordinal)
}

// excerpt trims s to at most n runes on a single line.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// formatSummary formats the end-of-loop summary.
func formatSummary(s *Summary) string {
	lines := make([]string, 0, 7)
	lines = append(lines, "Continuous loop complete:")
	lines = append(lines, fmt.Sprintf("  %s %d iteration(s) merged", IconSuccess, s.Succeeded))
	if s.Failed > 0 {
		lines = append(lines, fmt.Sprintf("  %s %d failure(s)", IconFailed, s.Failed))
	}
	lines = append(lines, fmt.Sprintf("  Attempts: %d", s.Attempts))
	lines = append(lines, fmt.Sprintf("  Total cost: %s", FormatCost(s.TotalCost)))
	lines = append(lines, fmt.Sprintf("  Duration: %s", FormatDuration(s.Duration)))
	lines = append(lines, fmt.Sprintf("  Stopped: %s", s.StopReason))
	return strings.Join(lines, "\n")
}

// String renders the end-of-loop summary.
func (s *Summary) String() string {
	return formatSummary(s)
}
