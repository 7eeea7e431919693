package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"autoclipper/internal/runstore"
)

const (
	DefaultSettingsPath = "config/settings.json"
	DefaultClipLength   = 10
	DefaultFormat       = "mp4"
	DefaultInstallDir   = "tools"

	settingsSchemaVersion = 1
)

var SupportedFormats = []string{"mp4", "webm", "mkv"}

type Settings struct {
	SchemaVersion      int    `json:"schema_version"`
	UpdatedAt          string `json:"updated_at,omitempty"`
	ClipLength         int    `json:"clip_length_seconds"`
	Format             string `json:"format"`
	Mute               bool   `json:"mute"`
	DeleteOriginal     bool   `json:"delete_original"`
	InstallDir         string `json:"install_dir"`
	OutputDir          string `json:"output_dir"`
	CookiesPath        string `json:"cookies_path,omitempty"`
	CookiesFromBrowser string `json:"cookies_from_browser,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		SchemaVersion: settingsSchemaVersion,
		ClipLength:    DefaultClipLength,
		Format:        DefaultFormat,
		InstallDir:    DefaultInstallDir,
		OutputDir:     DefaultOutputDir(),
	}
}

// DefaultOutputDir is ~/Videos/AutoClipperApp, using USERPROFILE on Windows
// when it is set.
func DefaultOutputDir() string {
	home := ""
	if runtime.GOOS == "windows" {
		home = strings.TrimSpace(os.Getenv("USERPROFILE"))
	}
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	if home == "" {
		return filepath.Join("Videos", "AutoClipperApp")
	}
	return filepath.Join(home, "Videos", "AutoClipperApp")
}

func NormalizeFormat(raw string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "."))
}

func ValidFormat(raw string) bool {
	return slices.Contains(SupportedFormats, NormalizeFormat(raw))
}

func normalizeSettings(raw Settings) Settings {
	norm := raw
	norm.SchemaVersion = settingsSchemaVersion
	if norm.ClipLength <= 0 {
		norm.ClipLength = DefaultClipLength
	}
	norm.Format = NormalizeFormat(norm.Format)
	if !ValidFormat(norm.Format) {
		norm.Format = DefaultFormat
	}
	norm.InstallDir = strings.TrimSpace(norm.InstallDir)
	if norm.InstallDir == "" {
		norm.InstallDir = DefaultInstallDir
	}
	norm.OutputDir = strings.TrimSpace(norm.OutputDir)
	if norm.OutputDir == "" {
		norm.OutputDir = DefaultOutputDir()
	}
	norm.CookiesPath = strings.TrimSpace(norm.CookiesPath)
	norm.CookiesFromBrowser = strings.TrimSpace(norm.CookiesFromBrowser)
	return norm
}

func normalizeSettingsPath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return DefaultSettingsPath
	}
	return p
}

// ReadSettings never creates the file; a missing file reads as defaults.
func ReadSettings(path string) (Settings, error) {
	var s Settings
	err := runstore.ReadJSON(normalizeSettingsPath(path), &s)
	if err == nil {
		return normalizeSettings(s), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSettings(), nil
	}
	return Settings{}, err
}

// EnsureSettings loads the settings file, writing defaults when it does not
// exist yet. The bool reports whether the file was created.
func EnsureSettings(path string) (Settings, bool, error) {
	p := normalizeSettingsPath(path)
	var s Settings
	err := runstore.ReadJSON(p, &s)
	if err == nil {
		return normalizeSettings(s), false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return Settings{}, false, err
	}
	saved, err := SaveSettings(p, DefaultSettings())
	if err != nil {
		return Settings{}, false, err
	}
	return saved, true, nil
}

func SaveSettings(path string, s Settings) (Settings, error) {
	p := normalizeSettingsPath(path)
	norm := normalizeSettings(s)
	norm.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	if err := runstore.Mkdir(filepath.Dir(p)); err != nil {
		return Settings{}, err
	}
	if err := runstore.WriteJSON(p, norm); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return norm, nil
}
