package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// stderrIsTerminal reports whether status lines have a human reader.
var stderrIsTerminal = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

// statusWriter is where status lines go. Tests replace it.
var statusWriter io.Writer = os.Stderr

// statusf prints a status message to stderr unless quiet mode is set.
// Without a terminal on stderr, messages are shown only with --verbose.
func statusf(flags CLIFlags, format string, args ...any) {
	if flags.Quiet {
		return
	}

	if !stderrIsTerminal && !flags.Verbose {
		return
	}

	fmt.Fprintf(statusWriter, format, args...)
}

// Statusf prints a status message gated by the command's flags.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags, format, args...)
}

// formatSize renders bytes with binary multiples, e.g. "1.5 KB".
func formatSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}

	v := float64(bytes) / 1024
	units := []string{"KB", "MB", "GB", "TB"}

	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}

	return fmt.Sprintf("%.1f %s", v, units[i])
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// printTable writes the header and rows as columns padded to the widest
// cell, two spaces apart. Every row has len(header) cells.
func printTable(w io.Writer, header []string, rows [][]string) {
	all := append([][]string{header}, rows...)

	widths := make([]int, len(header))
	for _, row := range all {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var line strings.Builder
	for _, row := range all {
		line.Reset()

		for i, cell := range row {
			if i > 0 {
				line.WriteString("  ")
			}

			fmt.Fprintf(&line, "%-*s", widths[i], cell)
		}

		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
}
