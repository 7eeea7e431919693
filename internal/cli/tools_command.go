package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"autoclipper/internal/config"
	"autoclipper/internal/provision"
	"autoclipper/internal/toolrun"
)

var (
	toolsOKStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	toolsVersionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func runTools(args []string) error {
	fs := flag.NewFlagSet("tools", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath, "settings file path")
	installDir := fs.String("install-dir", "", "directory holding yt-dlp/ffmpeg/ffprobe (default: settings)")
	verbose := fs.Bool("verbose", false, "print diagnostic logs to stderr")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := config.ReadSettings(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	dir := firstNonEmpty(*installDir, settings.InstallDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := newLogger(*verbose)
	runner := toolrun.NewExecRunner(logger)
	p := provision.NewProvisioner(runner, logger)
	if !*jsonOut {
		p.Notify = func(line string) { fmt.Println(line) }
	}

	set, err := p.Ensure(ctx, dir)
	if err != nil {
		return err
	}
	versions, verifyErr := p.Versions(ctx, set, nil)
	if *jsonOut {
		out := map[string]any{
			"install_dir": dir,
			"tools":       set,
			"versions":    versions,
			"ok":          verifyErr == nil,
		}
		if verifyErr != nil {
			out["error"] = verifyErr.Error()
		}
		if err := printJSON(out); err != nil {
			return err
		}
		return verifyErr
	}

	fmt.Printf("yt-dlp: %s %s\n", set.FetcherPath, toolsVersionStyle.Render("("+firstNonEmpty(versions[provision.FetcherName], "unknown version")+")"))
	fmt.Printf("ffmpeg: %s %s\n", set.TranscoderPath, toolsVersionStyle.Render("("+firstNonEmpty(versions[provision.TranscoderName], "unknown version")+")"))
	fmt.Printf("ffprobe: %s %s\n", set.ProberPath, toolsVersionStyle.Render("("+firstNonEmpty(versions[provision.ProberName], "unknown version")+")"))
	if verifyErr != nil {
		return verifyErr
	}
	fmt.Println(toolsOKStyle.Render("tools: all tools run"))
	return nil
}
