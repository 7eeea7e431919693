package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"autoclipper/internal/config"
	"autoclipper/internal/toolrun"
)

var (
	doctorOKStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	doctorFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
)

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath, "settings file path")
	installDir := fs.String("install-dir", "", "directory holding yt-dlp/ffmpeg/ffprobe (default: settings)")
	outputDir := fs.String("output-dir", "", "output directory (default: settings)")
	verbose := fs.Bool("verbose", false, "print diagnostic logs to stderr")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*configPath)
	settings, err := config.ReadSettings(path)
	if err != nil {
		return err
	}
	res, err := config.Doctor(context.Background(), config.DoctorOptions{
		InstallDir:   firstNonEmpty(*installDir, settings.InstallDir),
		OutputDir:    firstNonEmpty(*outputDir, settings.OutputDir),
		SettingsPath: path,
		Runner:       toolrun.NewExecRunner(newLogger(*verbose)),
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(res)
	}

	for _, c := range res.Checks {
		status := doctorOKStyle.Render("ok")
		if !c.OK {
			status = doctorFailStyle.Render("fail")
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all checks passed")
	return nil
}
