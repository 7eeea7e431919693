package ytdlp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	VideoURLTemplate = "https://www.youtube.com/watch?v=%s"

	// FallbackFormat is tried once when the primary selector fails.
	FallbackFormat = "best"
)

// CookieOptions are handed straight to the fetcher; autoclipper never reads
// the cookies itself.
type CookieOptions struct {
	CookiesPath        string
	CookiesFromBrowser string
}

// Args returns the primary cookie arguments. A configured browser wins over a
// cookies file so the file can serve as the fallback.
func (c CookieOptions) Args() []string {
	if b := strings.TrimSpace(c.CookiesFromBrowser); b != "" {
		return []string{"--cookies-from-browser", b}
	}
	if path, err := resolveCookiesPath(c.CookiesPath); err == nil && path != "" {
		return []string{"--cookies", path}
	}
	return nil
}

// FileFallback returns options that only use the cookies file, and whether
// such a retry differs from the primary arguments.
func (c CookieOptions) FileFallback() (CookieOptions, bool) {
	if strings.TrimSpace(c.CookiesFromBrowser) == "" {
		return CookieOptions{}, false
	}
	path, err := resolveCookiesPath(c.CookiesPath)
	if err != nil || path == "" {
		return CookieOptions{}, false
	}
	return CookieOptions{CookiesPath: path}, true
}

// PrimaryFormat asks for the best video in the target container plus the best
// audio, degrading to the best muxed stream.
func PrimaryFormat(container string) string {
	return fmt.Sprintf("bestvideo[ext=%s]+bestaudio/best/best", normalizeContainer(container))
}

func VideoURL(id string) string {
	return fmt.Sprintf(VideoURLTemplate, id)
}

func metadataArgs(sourceURL string, cookies CookieOptions) []string {
	args := []string{sourceURL, "--skip-download", "--dump-json"}
	return append(args, cookies.Args()...)
}

func downloadArgs(videoURL, outPath string, cookies CookieOptions, format string) []string {
	args := []string{videoURL, "-o", outPath}
	args = append(args, cookies.Args()...)
	return append(args, "-f", format)
}

func normalizeContainer(raw string) string {
	v := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
	if v == "" {
		return "mp4"
	}
	return v
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}

// DefaultCookiesFile fills CookiesPath with {installDir}/cookies.txt when no
// file was configured and that file exists.
func (c CookieOptions) DefaultCookiesFile(installDir string) CookieOptions {
	if strings.TrimSpace(c.CookiesPath) != "" || strings.TrimSpace(installDir) == "" {
		return c
	}
	candidate := filepath.Join(installDir, "cookies.txt")
	if _, err := os.Stat(candidate); err == nil {
		c.CookiesPath = candidate
	}
	return c
}
