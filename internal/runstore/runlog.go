package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autoclipper/internal/model"
)

const RunLogFileName = "autoclipper_log.txt"

func RunLogPath(outputDir string) string {
	return filepath.Join(outputDir, RunLogFileName)
}

// AppendRunLog adds one human-readable block per run. The file is never
// rewritten, only appended to.
func AppendRunLog(outputDir string, result model.RunResult, at time.Time) error {
	if err := Mkdir(outputDir); err != nil {
		return err
	}
	path := RunLogPath(outputDir)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log %s: %w", path, err)
	}
	if _, err := f.WriteString(FormatRunLog(result, at)); err != nil {
		_ = f.Close()
		return fmt.Errorf("append run log %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close run log %s: %w", path, err)
	}
	return nil
}

func FormatRunLog(result model.RunResult, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s ===\n", result.PlaylistTitle)
	fmt.Fprintf(&b, "Time: %s\n", at.Format("2006-01-02 15:04:05"))
	if result.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", result.RunID)
	}
	fmt.Fprintf(&b, "Clips created: %d\n", result.ClipsCreated)
	if result.Canceled {
		b.WriteString("Canceled before all videos were processed\n")
	}
	b.WriteString("Succeeded:\n")
	for _, stem := range result.Succeeded {
		fmt.Fprintf(&b, "  %s\n", stem)
	}
	b.WriteString("Skipped:\n")
	for _, s := range result.Skipped {
		fmt.Fprintf(&b, "  %s\n", s.String())
	}
	b.WriteString("\n")
	return b.String()
}
