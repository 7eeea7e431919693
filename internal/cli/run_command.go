package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"autoclipper/internal/config"
	"autoclipper/internal/model"
	"autoclipper/internal/pipeline"
	"autoclipper/internal/provision"
	"autoclipper/internal/toolrun"
	"autoclipper/internal/ytdlp"
)

// rePct matches yt-dlp "[download]  42.0% of ..." lines.
var rePct = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)

type runOutput struct {
	model.RunResult
	OutputDir string `json:"output_dir"`
	Error     string `json:"error,omitempty"`
}

func runClip(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	url := fs.String("url", "", "playlist URL")
	configPath := fs.String("config", config.DefaultSettingsPath, "settings file path")
	outputDir := fs.String("output-dir", "", "output directory for videos and clips (default: settings)")
	clipLength := fs.Int("clip-length", 0, "clip length in seconds (default: settings)")
	format := fs.String("format", "", "container: "+strings.Join(config.SupportedFormats, "|")+" (default: settings)")
	mute := fs.Bool("mute", false, "strip audio from clips")
	deleteOriginal := fs.Bool("delete-original", false, "delete each source video after segmentation")
	installDir := fs.String("install-dir", "", "directory holding yt-dlp/ffmpeg/ffprobe (default: settings)")
	cookies := fs.String("cookies", "", "path to cookies.txt")
	browserCookies := fs.String("browser-cookies", "", "browser to read cookies from, e.g. chrome|edge|firefox")
	tui := fs.Bool("tui", false, "show the interactive live view")
	rawOutput := fs.Bool("raw-output", false, "print raw yt-dlp/ffmpeg output lines")
	verbose := fs.Bool("verbose", false, "print diagnostic logs to stderr")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*url) == "" && fs.NArg() > 0 {
		*url = fs.Arg(0)
	}
	if *tui && *jsonOut {
		return errors.New("--tui and --json cannot be combined")
	}
	if strings.TrimSpace(*url) == "" && *tui {
		current, _, err := config.EnsureSettings(strings.TrimSpace(*configPath))
		if err != nil {
			return err
		}
		_, formURL, ok, err := runSettingsForm(strings.TrimSpace(*configPath), current, true)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("run cancelled")
			return nil
		}
		*url = formURL
	}
	if strings.TrimSpace(*url) == "" {
		return errors.New("--url is required")
	}

	settings, err := config.ReadSettings(strings.TrimSpace(*configPath))
	if err != nil {
		return err
	}
	set := flagsSet(fs)
	if set["clip-length"] {
		if *clipLength <= 0 {
			return errors.New("--clip-length must be >= 1")
		}
		settings.ClipLength = *clipLength
	}
	if set["format"] {
		if !config.ValidFormat(*format) {
			return fmt.Errorf("--format must be one of %s", strings.Join(config.SupportedFormats, ", "))
		}
		settings.Format = config.NormalizeFormat(*format)
	}
	if set["mute"] {
		settings.Mute = *mute
	}
	if set["delete-original"] {
		settings.DeleteOriginal = *deleteOriginal
	}
	settings.OutputDir = firstNonEmpty(*outputDir, settings.OutputDir)
	settings.InstallDir = firstNonEmpty(*installDir, settings.InstallDir)
	settings.CookiesPath = firstNonEmpty(*cookies, settings.CookiesPath)
	settings.CookiesFromBrowser = firstNonEmpty(*browserCookies, settings.CookiesFromBrowser)

	opts := pipeline.Options{
		PlaylistURL:    strings.TrimSpace(*url),
		OutputDir:      settings.OutputDir,
		InstallDir:     settings.InstallDir,
		ClipLength:     settings.ClipLength,
		Format:         settings.Format,
		Mute:           settings.Mute,
		DeleteOriginal: settings.DeleteOriginal,
		Cookies: ytdlp.CookieOptions{
			CookiesPath:        settings.CookiesPath,
			CookiesFromBrowser: settings.CookiesFromBrowser,
		},
		Logger: newLogger(*verbose),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var result model.RunResult
	var runErr error
	switch {
	case *tui:
		if !stdinIsTTY() {
			return errors.New("--tui requires an interactive terminal (TTY)")
		}
		result, runErr = runLive(ctx, opts)
	case *jsonOut:
		result, runErr = pipeline.Run(ctx, opts)
	default:
		fmt.Printf("run: %s -> %s\n", opts.PlaylistURL, opts.OutputDir)
		opts.Sink = newConsoleSink(*rawOutput, stdoutIsTTY())
		result, runErr = pipeline.Run(ctx, opts)
		opts.Sink.(*consoleSink).finish()
	}

	if *jsonOut {
		out := runOutput{RunResult: result, OutputDir: opts.OutputDir}
		if runErr != nil {
			out.Error = runErr.Error()
		}
		if err := printJSON(out); err != nil {
			return err
		}
		return runErr
	}
	if runErr != nil && !result.Canceled {
		printRunHint(runErr)
		return runErr
	}
	printRunSummary(result, opts.OutputDir)
	if result.Canceled {
		return fmt.Errorf("run canceled before all videos were processed: %w", runErr)
	}
	return nil
}

func printRunHint(err error) {
	var playlistErr *ytdlp.PlaylistError
	var provisionErr *provision.ProvisionError
	switch {
	case errors.As(err, &playlistErr):
		fmt.Println("hint: for private or age-restricted playlists set cookies:")
		fmt.Println("  autoclipper settings set --browser-cookies chrome")
		fmt.Println("  autoclipper settings set --cookies /path/to/cookies.txt")
	case errors.As(err, &provisionErr):
		fmt.Println("hint: check tools with `autoclipper doctor`, or delete the install dir to download them again")
	}
}

func printRunSummary(result model.RunResult, outputDir string) {
	fmt.Println("run summary")
	fmt.Printf("run_id: %s\n", result.RunID)
	fmt.Printf("playlist: %s\n", result.PlaylistTitle)
	fmt.Printf("output_dir: %s\n", outputDir)
	fmt.Printf("clips_created: %d\n", result.ClipsCreated)
	fmt.Printf("succeeded: %d\n", len(result.Succeeded))
	for _, stem := range result.Succeeded {
		fmt.Printf("  %s\n", stem)
	}
	fmt.Printf("skipped: %d\n", len(result.Skipped))
	for _, s := range result.Skipped {
		fmt.Printf("  %s\n", s.String())
	}
	if result.Canceled {
		fmt.Println("next: rerun `autoclipper run` with the same URL; downloaded videos are reused")
	}
}

// consoleSink prints pipeline lines as they come. On a terminal the clip
// progress and the yt-dlp percentage share one redrawn status line.
type consoleSink struct {
	raw     bool
	tty     bool
	mu      sync.Mutex
	pending bool
}

func newConsoleSink(raw, tty bool) *consoleSink {
	return &consoleSink{raw: raw, tty: tty}
}

func (s *consoleSink) Log(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearStatus()
	fmt.Println(line)
}

func (s *consoleSink) Progress(percent float64) {
	if !s.tty {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Printf("\r\033[2K  clipping %3.0f%%", percent)
	s.pending = true
}

func (s *consoleSink) ToolOutput(stream toolrun.OutputStream, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw {
		s.clearStatus()
		fmt.Println(line)
		return
	}
	if !s.tty {
		return
	}
	if pct, ok := downloadPercent(line); ok {
		fmt.Printf("\r\033[2K  downloading %5.1f%%", pct)
		s.pending = true
	}
}

func (s *consoleSink) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearStatus()
}

func (s *consoleSink) clearStatus() {
	if s.pending {
		fmt.Print("\r\033[2K")
		s.pending = false
	}
}

func downloadPercent(line string) (float64, bool) {
	l := strings.TrimSpace(line)
	if !strings.HasPrefix(l, "[download]") {
		return 0, false
	}
	m := rePct.FindStringSubmatch(l)
	if len(m) != 2 {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return min(pct, 100), true
}
