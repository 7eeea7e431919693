package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"autoclipper/internal/model"
	"autoclipper/internal/toolrun"
)

const (
	FetcherName    = "yt-dlp"
	TranscoderName = "ffmpeg"
	ProberName     = "ffprobe"

	archiveFileName = "ffmpeg.zip"
	userAgent       = "autoclipper-provision"
)

// ProvisionError means a tool could not be obtained or does not run. It is
// fatal: the run stops before any download.
type ProvisionError struct {
	Tool string
	Err  error
}

func (e *ProvisionError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("provision tools: %v", e.Err)
	}
	return fmt.Sprintf("provision %s: %v", e.Tool, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}

type Provisioner struct {
	// FetcherMirrors are tried in order; the first successful download wins.
	FetcherMirrors []string
	// TranscoderArchives are zip archives holding both ffmpeg and ffprobe.
	TranscoderArchives []string

	Client *http.Client
	Runner toolrun.Runner
	Logger *slog.Logger
	// Notify receives user-facing status lines.
	Notify func(line string)
}

func NewProvisioner(runner toolrun.Runner, logger *slog.Logger) *Provisioner {
	return &Provisioner{
		FetcherMirrors:     DefaultFetcherMirrors(runtime.GOOS, runtime.GOARCH),
		TranscoderArchives: DefaultTranscoderArchives(runtime.GOOS),
		Client:             &http.Client{Timeout: 15 * time.Minute},
		Runner:             runner,
		Logger:             logger,
	}
}

func DefaultFetcherMirrors(goos, goarch string) []string {
	asset := "yt-dlp"
	switch goos {
	case "windows":
		asset = "yt-dlp.exe"
	case "darwin":
		asset = "yt-dlp_macos"
	case "linux":
		if goarch == "arm64" {
			asset = "yt-dlp_linux_aarch64"
		} else {
			asset = "yt-dlp_linux"
		}
	}
	return []string{
		"https://github.com/yt-dlp/yt-dlp/releases/latest/download/" + asset,
		"https://github.com/yt-dlp/yt-dlp-nightly-builds/releases/latest/download/" + asset,
	}
}

// DefaultTranscoderArchives lists zip mirrors per platform. Platforms without
// a known zip build fall back to ffmpeg/ffprobe found on PATH.
func DefaultTranscoderArchives(goos string) []string {
	if goos != "windows" {
		return nil
	}
	return []string{
		"https://www.gyan.dev/ffmpeg/builds/ffmpeg-release-essentials.zip",
		"https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-win64-gpl.zip",
	}
}

// ExecutableName appends the platform executable suffix.
func ExecutableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

// ExpectedToolSet returns the canonical tool locations under installDir.
func ExpectedToolSet(installDir string) model.ToolSet {
	return model.ToolSet{
		FetcherPath:    filepath.Join(installDir, ExecutableName(FetcherName)),
		TranscoderPath: filepath.Join(installDir, ExecutableName(TranscoderName)),
		ProberPath:     filepath.Join(installDir, ExecutableName(ProberName)),
	}
}

// Ensure makes sure the fetcher, transcoder and prober exist under
// installDir. Existing files are reused as-is.
func (p *Provisioner) Ensure(ctx context.Context, installDir string) (model.ToolSet, error) {
	if strings.TrimSpace(installDir) == "" {
		return model.ToolSet{}, &ProvisionError{Err: errors.New("install directory is required")}
	}
	abs, err := filepath.Abs(installDir)
	if err != nil {
		return model.ToolSet{}, &ProvisionError{Err: fmt.Errorf("resolve install directory %s: %w", installDir, err)}
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return model.ToolSet{}, &ProvisionError{Err: fmt.Errorf("create install directory %s: %w", abs, err)}
	}

	set := ExpectedToolSet(abs)

	if !fileExists(set.FetcherPath) {
		p.notify("Downloading yt-dlp...")
		if err := p.fetchSingle(ctx, p.FetcherMirrors, set.FetcherPath); err != nil {
			return model.ToolSet{}, &ProvisionError{Tool: FetcherName, Err: err}
		}
	}

	needTranscoder := !fileExists(set.TranscoderPath)
	needProber := !fileExists(set.ProberPath)
	if !needTranscoder && !needProber {
		return set, nil
	}

	if len(p.TranscoderArchives) == 0 {
		return p.fromPath(set, needTranscoder, needProber)
	}

	p.notify("Downloading ffmpeg (this may take a while)...")
	wanted := map[string]string{}
	if needTranscoder {
		wanted[ExecutableName(TranscoderName)] = set.TranscoderPath
	}
	if needProber {
		wanted[ExecutableName(ProberName)] = set.ProberPath
	}
	if err := p.fetchArchive(ctx, abs, wanted); err != nil {
		return model.ToolSet{}, &ProvisionError{Tool: TranscoderName, Err: err}
	}
	return set, nil
}

func (p *Provisioner) fromPath(set model.ToolSet, needTranscoder, needProber bool) (model.ToolSet, error) {
	if needTranscoder {
		found, err := exec.LookPath(TranscoderName)
		if err != nil {
			return model.ToolSet{}, &ProvisionError{Tool: TranscoderName, Err: fmt.Errorf("no archive mirror for %s and not found on PATH", runtime.GOOS)}
		}
		set.TranscoderPath = found
	}
	if needProber {
		found, err := exec.LookPath(ProberName)
		if err != nil {
			return model.ToolSet{}, &ProvisionError{Tool: ProberName, Err: fmt.Errorf("no archive mirror for %s and not found on PATH", runtime.GOOS)}
		}
		set.ProberPath = found
	}
	p.logger().Info("using transcoder from PATH", "ffmpeg", set.TranscoderPath, "ffprobe", set.ProberPath)
	return set, nil
}

func (p *Provisioner) fetchSingle(ctx context.Context, mirrors []string, dst string) error {
	if len(mirrors) == 0 {
		return errors.New("no mirrors configured")
	}
	var errs []error
	for _, mirror := range mirrors {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.downloadTo(ctx, mirror, dst); err != nil {
			p.logger().Warn("mirror failed", "url", mirror, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", mirror, err))
			continue
		}
		if err := makeExecutable(dst); err != nil {
			return err
		}
		p.logger().Info("downloaded tool", "url", mirror, "path", dst)
		return nil
	}
	return fmt.Errorf("all %d mirror(s) failed: %w", len(mirrors), errors.Join(errs...))
}

// fetchArchive downloads the first reachable archive and extracts the wanted
// binaries. A binary missing from that archive is fatal; other mirrors are
// not tried once one archive has been downloaded.
func (p *Provisioner) fetchArchive(ctx context.Context, installDir string, wanted map[string]string) error {
	archivePath := filepath.Join(installDir, archiveFileName)
	var errs []error
	for _, mirror := range p.TranscoderArchives {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.downloadTo(ctx, mirror, archivePath); err != nil {
			p.logger().Warn("archive mirror failed", "url", mirror, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", mirror, err))
			continue
		}
		defer os.Remove(archivePath)
		if err := extractTools(archivePath, installDir, wanted); err != nil {
			return err
		}
		p.logger().Info("unpacked transcoder archive", "url", mirror)
		return nil
	}
	return fmt.Errorf("all %d archive mirror(s) failed: %w", len(p.TranscoderArchives), errors.Join(errs...))
}

func (p *Provisioner) downloadTo(ctx context.Context, fileURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download failed (%d)", resp.StatusCode)
	}
	return writeStream(dst, resp.Body)
}

// Verify runs each tool with its version flag. Any failure is a
// ProvisionError and the caller must abort the run.
func (p *Provisioner) Verify(ctx context.Context, set model.ToolSet, onLine toolrun.LineFunc) error {
	_, err := p.Versions(ctx, set, onLine)
	return err
}

// Versions is Verify that also returns the first stdout line of each tool,
// keyed by tool name.
func (p *Provisioner) Versions(ctx context.Context, set model.ToolSet, onLine toolrun.LineFunc) (map[string]string, error) {
	checks := []struct {
		tool string
		inv  toolrun.Invocation
	}{
		{FetcherName, toolrun.Invocation{Path: set.FetcherPath, Args: []string{"--version"}}},
		{TranscoderName, toolrun.Invocation{Path: set.TranscoderPath, Args: []string{"-version"}}},
		{ProberName, toolrun.Invocation{Path: set.ProberPath, Args: []string{"-version"}}},
	}
	versions := make(map[string]string, len(checks))
	for _, c := range checks {
		code, lines, err := toolrun.Capture(ctx, p.Runner, c.inv, onLine)
		if err != nil {
			return versions, &ProvisionError{Tool: c.tool, Err: fmt.Errorf("%s failed to run: %w", c.tool, err)}
		}
		if code != 0 {
			return versions, &ProvisionError{Tool: c.tool, Err: fmt.Errorf("%s failed to run (exit %d)", c.tool, code)}
		}
		if len(lines) > 0 {
			versions[c.tool] = strings.TrimSpace(lines[0])
		}
		p.logger().Debug("tool verified", "tool", c.tool, "path", c.inv.Path)
	}
	return versions, nil
}

func (p *Provisioner) notify(line string) {
	if p.Notify != nil {
		p.Notify(line)
	}
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func makeExecutable(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0o755); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
