package cli

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"autoclipper/internal/config"
)

func runSettings(args []string) error {
	if len(args) == 0 {
		printSettingsUsage()
		return nil
	}
	switch args[0] {
	case "show":
		return runSettingsShow(args[1:])
	case "set":
		return runSettingsSet(args[1:])
	case "edit":
		return runSettingsEdit(args[1:])
	case "help", "-h", "--help":
		printSettingsUsage()
		return nil
	default:
		printSettingsUsage()
		return fmt.Errorf("unknown settings subcommand %q", args[0])
	}
}

func runSettingsShow(args []string) error {
	fs := flag.NewFlagSet("settings show", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath, "settings file path")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*configPath)
	s, _, err := config.EnsureSettings(path)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"settings":    s,
		})
	}

	fmt.Printf("config: %s\n", path)
	printSettings(s)
	return nil
}

func runSettingsSet(args []string) error {
	fs := flag.NewFlagSet("settings set", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath, "settings file path")
	clipLength := fs.Int("clip-length", 0, "default clip length in seconds (>=1)")
	format := fs.String("format", "", "default container: "+strings.Join(config.SupportedFormats, "|"))
	mute := fs.Bool("mute", false, "strip audio from clips by default")
	deleteOriginal := fs.Bool("delete-original", false, "delete each source video after segmentation by default")
	installDir := fs.String("install-dir", "", "directory holding yt-dlp/ffmpeg/ffprobe")
	outputDir := fs.String("output-dir", "", "default output directory for videos and clips")
	cookies := fs.String("cookies", "", "cookies.txt passed to yt-dlp (empty string clears)")
	browserCookies := fs.String("browser-cookies", "", "browser to read cookies from, e.g. chrome|edge|firefox (empty string clears)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	set := flagsSet(fs)
	path := strings.TrimSpace(*configPath)
	s, _, err := config.EnsureSettings(path)
	if err != nil {
		return err
	}

	if set["clip-length"] {
		if *clipLength <= 0 {
			return errors.New("--clip-length must be >= 1")
		}
		s.ClipLength = *clipLength
	}
	if set["format"] {
		if !config.ValidFormat(*format) {
			return fmt.Errorf("--format must be one of %s", strings.Join(config.SupportedFormats, ", "))
		}
		s.Format = config.NormalizeFormat(*format)
	}
	if set["mute"] {
		s.Mute = *mute
	}
	if set["delete-original"] {
		s.DeleteOriginal = *deleteOriginal
	}
	if set["install-dir"] {
		s.InstallDir = *installDir
	}
	if set["output-dir"] {
		s.OutputDir = *outputDir
	}
	if set["cookies"] {
		s.CookiesPath = *cookies
	}
	if set["browser-cookies"] {
		s.CookiesFromBrowser = *browserCookies
	}

	saved, err := config.SaveSettings(path, s)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{
			"config_path": path,
			"settings":    saved,
		})
	}
	fmt.Printf("updated settings in %s\n", path)
	printSettings(saved)
	return nil
}

func runSettingsEdit(args []string) error {
	fs := flag.NewFlagSet("settings edit", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultSettingsPath, "settings file path")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := strings.TrimSpace(*configPath)
	s, _, err := config.EnsureSettings(path)
	if err != nil {
		return err
	}
	saved, _, ok, err := runSettingsForm(path, s, false)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("settings unchanged")
		return nil
	}
	fmt.Printf("updated settings in %s\n", path)
	printSettings(saved)
	return nil
}

func printSettings(s config.Settings) {
	fmt.Printf("clip_length_seconds: %d\n", s.ClipLength)
	fmt.Printf("format: %s\n", s.Format)
	fmt.Printf("mute: %t\n", s.Mute)
	fmt.Printf("delete_original: %t\n", s.DeleteOriginal)
	fmt.Printf("install_dir: %s\n", s.InstallDir)
	fmt.Printf("output_dir: %s\n", s.OutputDir)
	fmt.Printf("cookies: %s\n", firstNonEmpty(s.CookiesPath, "(none)"))
	fmt.Printf("browser_cookies: %s\n", firstNonEmpty(s.CookiesFromBrowser, "(none)"))
}

func printSettingsUsage() {
	fmt.Println("settings commands:")
	fmt.Println("  settings show")
	fmt.Println("  settings edit   (interactive form)")
	fmt.Println("  settings set [--clip-length N] [--format mp4|webm|mkv] [--mute[=false]] [--delete-original[=false]]")
	fmt.Println("               [--install-dir D] [--output-dir D] [--cookies F] [--browser-cookies NAME]")
}
