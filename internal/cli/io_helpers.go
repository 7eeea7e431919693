package cli

import (
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"strings"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stdinIsTTY() bool {
	return isTerminal(os.Stdin)
}

func stdoutIsTTY() bool {
	return isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// newLogger returns the diagnostic logger; without --verbose diagnostics are
// dropped and only user-facing lines are printed.
func newLogger(verbose bool) *slog.Logger {
	return newLoggerTo(os.Stderr, verbose)
}

func newLoggerTo(w io.Writer, verbose bool) *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// flagsSet reports which flags were given explicitly, so settings only get
// overridden by flags the user actually passed.
func flagsSet(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
