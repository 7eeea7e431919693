package config

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"autoclipper/internal/provision"
	"autoclipper/internal/runstore"
	"autoclipper/internal/toolrun"
)

type DoctorOptions struct {
	InstallDir   string
	OutputDir    string
	SettingsPath string
	// Runner, when set, runs each found tool with its version flag.
	Runner toolrun.Runner
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

type DoctorCheck struct {
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func Doctor(ctx context.Context, opts DoctorOptions) (DoctorResult, error) {
	installDir := strings.TrimSpace(opts.InstallDir)
	if installDir == "" {
		installDir = DefaultInstallDir
	}
	outputDir := strings.TrimSpace(opts.OutputDir)
	if outputDir == "" {
		outputDir = DefaultOutputDir()
	}
	settingsPath := normalizeSettingsPath(opts.SettingsPath)

	checks := make([]DoctorCheck, 0, 7)
	expected := provision.ExpectedToolSet(installDir)
	canFetchTranscoder := len(provision.DefaultTranscoderArchives(runtime.GOOS)) > 0
	checks = append(checks,
		toolCheck(ctx, opts.Runner, provision.FetcherName, expected.FetcherPath, "--version", true),
		toolCheck(ctx, opts.Runner, provision.TranscoderName, expected.TranscoderPath, "-version", canFetchTranscoder),
		toolCheck(ctx, opts.Runner, provision.ProberName, expected.ProberPath, "-version", canFetchTranscoder),
	)

	for _, dir := range []struct{ name, path string }{
		{"directory:tools", installDir},
		{"directory:output", outputDir},
		{"directory:config", filepath.Dir(settingsPath)},
	} {
		ok, msg := ensureWritableDir(dir.path)
		checks = append(checks, DoctorCheck{Name: dir.name, OK: ok, Message: msg})
	}
	checks = append(checks, lockCheck(outputDir))

	ok := true
	for _, c := range checks {
		if !c.OK {
			ok = false
			break
		}
	}
	return DoctorResult{OK: ok, Checks: checks}, nil
}

// toolCheck prefers the provisioned copy, then PATH. A tool that can be
// downloaded on first run is not a failure when missing.
func toolCheck(ctx context.Context, runner toolrun.Runner, name, provisioned, versionFlag string, downloadable bool) DoctorCheck {
	check := DoctorCheck{Name: "tool:" + name}
	path := ""
	where := ""
	if _, err := os.Stat(provisioned); err == nil {
		path, where = provisioned, "install dir"
	} else if found, err := exec.LookPath(provision.ExecutableName(name)); err == nil {
		path, where = found, "PATH"
	}

	if path == "" {
		check.OK = downloadable
		if downloadable {
			check.Message = name + " not installed; downloaded on first run"
		} else {
			check.Message = name + " not found in install dir or on PATH"
		}
		return check
	}

	check.OK = true
	check.Message = name + " found in " + where + " at " + path
	if runner == nil {
		return check
	}
	code, lines, err := toolrun.Capture(ctx, runner, toolrun.Invocation{Path: path, Args: []string{versionFlag}}, nil)
	if !toolrun.Succeeded(code, err) {
		check.OK = false
		check.Message = name + " at " + path + " does not run"
		return check
	}
	if len(lines) > 0 {
		check.Message += " (" + strings.TrimSpace(lines[0]) + ")"
	}
	return check
}

func lockCheck(outputDir string) DoctorCheck {
	check := DoctorCheck{Name: "lock:output", OK: true, Message: "no run in progress"}
	if _, err := os.Stat(runstore.LockPath(outputDir)); err != nil {
		return check
	}
	check.OK = false
	check.Message = "locked by another run; remove " + runstore.LockPath(outputDir) + " if no run is active"
	if owner, err := runstore.ReadLockOwner(outputDir); err == nil {
		check.Message = fmt.Sprintf("locked by run %s (pid %d, since %s); remove %s if no run is active",
			owner.RunID, owner.PID, owner.CreatedAt, runstore.LockPath(outputDir))
	}
	return check
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := runstore.Mkdir(path); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "autoclipper-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
