package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"autoclipper/internal/runstore"
)

const fakeYTDLP = `#!/usr/bin/env bash
set -euo pipefail
if [ "${1:-}" = "--version" ]; then
  echo "2026.01.01"
  exit 0
fi
for a in "$@"; do
  if [ "$a" = "--dump-json" ]; then
    cat "$AUTOCLIPPER_FIXTURE"
    exit 0
  fi
done
out=""
prev=""
for a in "$@"; do
  if [ "$prev" = "-o" ]; then out="$a"; fi
  prev="$a"
done
case "$1" in
  *private*) echo "ERROR: Private video" >&2; exit 1 ;;
esac
echo "$1" >> "$AUTOCLIPPER_DOWNLOADS"
echo "[download] 100% of 1.00MiB"
printf 'video' > "$out"
`

const fakeFFprobe = `#!/usr/bin/env bash
if [ "${1:-}" = "-version" ]; then
  echo "ffprobe version 7.0"
  exit 0
fi
echo "25.300000"
`

const fakeFFmpeg = `#!/usr/bin/env bash
if [ "${1:-}" = "-version" ]; then
  echo "ffmpeg version 7.0"
  exit 0
fi
for a in "$@"; do last="$a"; done
printf 'clip' > "$last"
`

type harness struct {
	installDir string
	outputDir  string
	configPath string
	downloads  string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are bash scripts")
	}
	tmp := t.TempDir()
	h := harness{
		installDir: filepath.Join(tmp, "tools"),
		outputDir:  filepath.Join(tmp, "out"),
		configPath: filepath.Join(tmp, "config", "settings.json"),
		downloads:  filepath.Join(tmp, "downloads.log"),
	}
	if err := os.MkdirAll(h.installDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{"yt-dlp": fakeYTDLP, "ffprobe": fakeFFprobe, "ffmpeg": fakeFFmpeg} {
		if err := os.WriteFile(filepath.Join(h.installDir, name), []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	fixture := filepath.Join(tmp, "playlist.jsonl")
	lines := []string{
		`{"id":"short1","title":"Short clip","duration":25.3,"playlist_title":"Harness Mix"}`,
		`{"id":"long1","title":"Long lecture","duration":1500,"playlist_title":"Harness Mix"}`,
		`{"id":"private1","title":"Private one","duration":30,"playlist_title":"Harness Mix"}`,
	}
	if err := os.WriteFile(fixture, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AUTOCLIPPER_FIXTURE", fixture)
	t.Setenv("AUTOCLIPPER_DOWNLOADS", h.downloads)
	return h
}

func (h harness) runArgs(extra ...string) []string {
	args := []string{
		"run",
		"--url", "https://www.youtube.com/playlist?list=PLharness",
		"--install-dir", h.installDir,
		"--output-dir", h.outputDir,
		"--config", h.configPath,
	}
	return append(args, extra...)
}

func TestHarnessRunJSON(t *testing.T) {
	h := newHarness(t)

	var runErr error
	out := captureStdout(t, func() {
		runErr = Run(h.runArgs("--json"))
	})
	if runErr != nil {
		t.Fatalf("run failed: %v\n%s", runErr, out)
	}

	var res runOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if res.PlaylistTitle != "Harness Mix" || res.ClipsCreated != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Succeeded) != 1 || res.Succeeded[0] != "short1" {
		t.Fatalf("succeeded: %v", res.Succeeded)
	}
	if len(res.Skipped) != 2 || res.Skipped[0].Reason != "longer than 20 minutes" || res.Skipped[1].Reason != "login/availability" {
		t.Fatalf("skipped: %+v", res.Skipped)
	}
	for _, name := range []string{"short1.mp4", "short1_0.mp4", "short1_1.mp4", "short1_2.mp4", runstore.RunLogFileName} {
		if _, err := os.Stat(filepath.Join(h.outputDir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestHarnessSecondRunUsesCache(t *testing.T) {
	h := newHarness(t)

	if err := quietRun(t, h.runArgs("--json")); err != nil {
		t.Fatalf("first run: %v", err)
	}
	var runErr error
	out := captureStdout(t, func() {
		runErr = Run(h.runArgs("--clip-length", "30"))
	})
	if runErr != nil {
		t.Fatalf("second run failed: %v\n%s", runErr, out)
	}
	for _, want := range []string{"Using cached short1.mp4", "run summary", "clips_created: 1", "Long lecture - longer than 20 minutes"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	data, err := os.ReadFile(h.downloads)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "short1"); n != 1 {
		t.Fatalf("expected exactly one download of short1, got %d", n)
	}
}

func TestHarnessStatusListsRuns(t *testing.T) {
	h := newHarness(t)
	if err := quietRun(t, h.runArgs("--json")); err != nil {
		t.Fatalf("run: %v", err)
	}

	var statusErr error
	out := captureStdout(t, func() {
		statusErr = Run([]string{"status", "--output-dir", h.outputDir, "--config", h.configPath, "--json"})
	})
	if statusErr != nil {
		t.Fatalf("status: %v", statusErr)
	}
	var res statusResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if res.Locked || len(res.Runs) != 1 || res.Runs[0].ClipsCreated != 3 {
		t.Fatalf("unexpected status: %+v", res)
	}

	out = captureStdout(t, func() {
		statusErr = Run([]string{"status", "--output-dir", h.outputDir, "--config", h.configPath, "--items"})
	})
	if statusErr != nil || !strings.Contains(out, "Harness Mix") || !strings.Contains(out, "download_failed") {
		t.Fatalf("status text err=%v:\n%s", statusErr, out)
	}
}

func TestHarnessPlaylistFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	broken := filepath.Join(h.installDir, "yt-dlp")
	script := "#!/usr/bin/env bash\nif [ \"${1:-}\" = \"--version\" ]; then echo ok; exit 0; fi\necho 'ERROR: Sign in to confirm' >&2\nexit 1\n"
	if err := os.WriteFile(broken, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	var err error
	out := captureStdout(t, func() {
		err = Run(h.runArgs())
	})
	if err == nil || !strings.Contains(err.Error(), "login") {
		t.Fatalf("expected playlist error, got %v", err)
	}
	if !strings.Contains(out, "--browser-cookies") || strings.Contains(out, "run summary") {
		t.Fatalf("expected cookie hint without summary:\n%s", out)
	}
	if _, statErr := os.Stat(filepath.Join(h.outputDir, runstore.RunLogFileName)); !os.IsNotExist(statErr) {
		t.Fatalf("run log must not be written when the playlist fails: %v", statErr)
	}
}

func TestHarnessToolsCommand(t *testing.T) {
	h := newHarness(t)
	var runErr error
	out := captureStdout(t, func() {
		runErr = Run([]string{"tools", "--install-dir", h.installDir, "--config", h.configPath})
	})
	if runErr != nil {
		t.Fatalf("tools: %v\n%s", runErr, out)
	}
	for _, want := range []string{"(2026.01.01)", "(ffmpeg version 7.0)", "tools: all tools run"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSettingsSetAndShow(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "settings.json")
	if err := quietRun(t, []string{"settings", "set", "--config", cfg, "--clip-length", "7", "--format", "WEBM", "--mute"}); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	var showErr error
	out := captureStdout(t, func() {
		showErr = Run([]string{"settings", "show", "--config", cfg})
	})
	if showErr != nil {
		t.Fatalf("settings show: %v", showErr)
	}
	for _, want := range []string{"clip_length_seconds: 7", "format: webm", "mute: true", "delete_original: false"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	if err := quietRun(t, []string{"settings", "set", "--config", cfg, "--format", "avi"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestRunRequiresURL(t *testing.T) {
	if err := quietRun(t, []string{"run", "--config", filepath.Join(t.TempDir(), "s.json")}); err == nil {
		t.Fatal("expected --url error")
	}
}

func TestUnknownCommand(t *testing.T) {
	if err := quietRun(t, []string{"bogus"}); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestHarnessDoctorPasses(t *testing.T) {
	h := newHarness(t)
	var runErr error
	out := captureStdout(t, func() {
		runErr = Run([]string{"doctor", "--install-dir", h.installDir, "--output-dir", h.outputDir, "--config", h.configPath})
	})
	if runErr != nil {
		t.Fatalf("doctor: %v\n%s", runErr, out)
	}
	for _, want := range []string{"tool:yt-dlp", "directory:output", "lock:output", "doctor: all checks passed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSettingsFormNeedsTerminal(t *testing.T) {
	if stdinIsTTY() {
		t.Skip("stdin is a terminal")
	}
	cfg := filepath.Join(t.TempDir(), "settings.json")
	for _, args := range [][]string{
		{"settings", "edit", "--config", cfg},
		{"run", "--tui", "--config", cfg},
	} {
		err := quietRun(t, args)
		if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
			t.Fatalf("%v: expected terminal error, got %v", args, err)
		}
	}
}
