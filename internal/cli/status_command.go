package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"autoclipper/internal/config"
	"autoclipper/internal/model"
	"autoclipper/internal/runstore"
)

var runStateStyles = map[string]lipgloss.Style{
	"done":        lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	"failed":      lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	"canceled":    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	"interrupted": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
}

type statusResult struct {
	OutputDir string              `json:"output_dir"`
	Locked    bool                `json:"locked"`
	LockOwner *runstore.LockOwner `json:"lock_owner,omitempty"`
	Runs      []model.RunManifest `json:"runs"`
	Unread    []string            `json:"unreadable,omitempty"`
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath, "settings file path")
	outputDir := fs.String("output-dir", "", "output directory (default: settings)")
	limit := fs.Int("limit", 10, "show at most N runs (0 = all)")
	items := fs.Bool("items", false, "list per-video status for each run")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := config.ReadSettings(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	dir := firstNonEmpty(*outputDir, settings.OutputDir)

	runs, unreadable, err := runstore.ListRunManifests(dir)
	if err != nil {
		return err
	}
	if *limit > 0 && len(runs) > *limit {
		runs = runs[:*limit]
	}
	res := statusResult{OutputDir: dir, Runs: runs, Unread: unreadable}
	if _, err := os.Stat(runstore.LockPath(dir)); err == nil {
		res.Locked = true
		if owner, err := runstore.ReadLockOwner(dir); err == nil {
			res.LockOwner = &owner
		}
	}
	if *jsonOut {
		return printJSON(res)
	}

	fmt.Printf("output_dir: %s\n", dir)
	if res.Locked {
		if res.LockOwner != nil {
			fmt.Printf("locked: run %s (pid %d, since %s)\n", res.LockOwner.RunID, res.LockOwner.PID, res.LockOwner.CreatedAt)
		} else {
			fmt.Println("locked: yes")
		}
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		fmt.Println("start here:")
		fmt.Println("  autoclipper run --url <playlist-url>")
		return nil
	}
	for _, r := range runs {
		state := "done"
		switch {
		case r.Error != "":
			state = "failed"
		case r.Canceled:
			state = "canceled"
		case r.FinishedAt == "":
			state = "interrupted"
		}
		counts := r.Counts()
		fmt.Printf("%s [%s]\n", r.RunID, runStateStyles[state].Render(state))
		fmt.Printf("  playlist: %s\n", r.PlaylistTitle)
		fmt.Printf("  started: %s\n", r.StartedAt)
		fmt.Printf("  clips: %d (%ds %s)\n", r.ClipsCreated, r.ClipLength, r.Format)
		fmt.Printf("  segmented/ineligible/download_failed/transcode_failed: %d/%d/%d/%d\n",
			counts[model.StatusSegmented], counts[model.StatusIneligible], counts[model.StatusDownloadFailed], counts[model.StatusTranscodeFailed])
		if r.Error != "" {
			fmt.Printf("  error: %s\n", r.Error)
		}
		if *items {
			for _, it := range r.Items {
				line := fmt.Sprintf("    %3d. %-16s %s", it.Index, it.Status, it.Title)
				if it.Reason != "" {
					line += " (" + it.Reason + ")"
				}
				fmt.Println(line)
			}
		}
	}
	for _, p := range unreadable {
		fmt.Printf("warn: could not read %s\n", p)
	}
	return nil
}
