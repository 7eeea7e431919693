package provision

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"autoclipper/internal/model"
	"autoclipper/internal/toolrun"
)

type fakeRunner struct {
	exitCodes map[string]int
	calls     []toolrun.Invocation
}

func (f *fakeRunner) Run(ctx context.Context, inv toolrun.Invocation, onLine toolrun.LineFunc) (int, error) {
	f.calls = append(f.calls, inv)
	if onLine != nil {
		onLine(toolrun.StreamStdout, "version 1.0")
	}
	return f.exitCodes[filepath.Base(inv.Path)], nil
}

type mirrorServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newMirrorServer(t *testing.T, files map[string][]byte) *mirrorServer {
	t.Helper()
	m := &mirrorServer{hits: map[string]int{}}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.hits[r.URL.Path]++
		m.mu.Unlock()
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mirrorServer) hitCount(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[path]
}

func (m *mirrorServer) totalHits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.hits {
		n += c
	}
	return n
}

func buildZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestProvisioner(srv *mirrorServer, fetcher, archives []string) *Provisioner {
	p := NewProvisioner(&fakeRunner{}, nil)
	p.Client = srv.Client()
	p.FetcherMirrors = fetcher
	p.TranscoderArchives = archives
	return p
}

func TestEnsureDownloadsFromFirstWorkingMirror(t *testing.T) {
	ffmpeg := ExecutableName(TranscoderName)
	ffprobe := ExecutableName(ProberName)
	archive := buildZip(t, map[string]string{
		"ffmpeg-7.1-essentials_build/bin/" + ffmpeg:  "ffmpeg-binary",
		"ffmpeg-7.1-essentials_build/bin/" + ffprobe: "ffprobe-binary",
		"ffmpeg-7.1-essentials_build/LICENSE":        "gpl",
	})
	srv := newMirrorServer(t, map[string][]byte{
		"/second/yt-dlp": []byte("ytdlp-binary"),
		"/third/yt-dlp":  []byte("unused"),
		"/ffmpeg.zip":    archive,
	})
	p := newTestProvisioner(srv,
		[]string{srv.URL + "/first/yt-dlp", srv.URL + "/second/yt-dlp", srv.URL + "/third/yt-dlp"},
		[]string{srv.URL + "/missing.zip", srv.URL + "/ffmpeg.zip"},
	)
	var notes []string
	p.Notify = func(line string) { notes = append(notes, line) }

	dir := t.TempDir()
	set, err := p.Ensure(context.Background(), dir)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	if srv.hitCount("/first/yt-dlp") != 1 || srv.hitCount("/second/yt-dlp") != 1 {
		t.Fatalf("expected one attempt on each of the first two mirrors, got %d total", srv.totalHits())
	}
	if srv.hitCount("/third/yt-dlp") != 0 {
		t.Fatal("mirrors after the first success must not be tried")
	}
	assertContent(t, set.FetcherPath, "ytdlp-binary")
	assertContent(t, set.TranscoderPath, "ffmpeg-binary")
	assertContent(t, set.ProberPath, "ffprobe-binary")

	if _, err := os.Stat(filepath.Join(dir, "ffmpeg-7.1-essentials_build")); !os.IsNotExist(err) {
		t.Fatalf("extracted top-level directory should be removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, archiveFileName)); !os.IsNotExist(err) {
		t.Fatalf("archive should be deleted, stat err=%v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected two download notices, got %#v", notes)
	}
}

func TestEnsureReusesExistingTools(t *testing.T) {
	srv := newMirrorServer(t, map[string][]byte{})
	p := newTestProvisioner(srv, []string{srv.URL + "/yt-dlp"}, []string{srv.URL + "/ffmpeg.zip"})

	dir := t.TempDir()
	want := ExpectedToolSet(dir)
	for _, path := range []string{want.FetcherPath, want.TranscoderPath, want.ProberPath} {
		if err := os.WriteFile(path, []byte("present"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	set, err := p.Ensure(context.Background(), dir)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if set != want {
		t.Fatalf("tool set mismatch: got %#v want %#v", set, want)
	}
	if srv.totalHits() != 0 {
		t.Fatalf("no downloads expected, got %d", srv.totalHits())
	}
}

func TestEnsureFailsWhenAllMirrorsFail(t *testing.T) {
	srv := newMirrorServer(t, map[string][]byte{})
	p := newTestProvisioner(srv, []string{srv.URL + "/a", srv.URL + "/b"}, nil)

	_, err := p.Ensure(context.Background(), t.TempDir())
	var perr *ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	if perr.Tool != FetcherName {
		t.Fatalf("unexpected tool in error: %q", perr.Tool)
	}
}

func TestEnsureFailsWhenArchiveLacksProber(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"build/bin/" + ExecutableName(TranscoderName): "ffmpeg-binary",
	})
	srv := newMirrorServer(t, map[string][]byte{
		"/yt-dlp":       []byte("ytdlp"),
		"/ffmpeg.zip":   archive,
		"/fallback.zip": archive,
	})
	p := newTestProvisioner(srv, []string{srv.URL + "/yt-dlp"}, []string{srv.URL + "/ffmpeg.zip", srv.URL + "/fallback.zip"})

	_, err := p.Ensure(context.Background(), t.TempDir())
	var perr *ProvisionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProvisionError, got %v", err)
	}
	if srv.hitCount("/fallback.zip") != 0 {
		t.Fatal("an unpack failure must not fall through to the next mirror")
	}
}

func TestEnsureRequiresInstallDir(t *testing.T) {
	p := NewProvisioner(&fakeRunner{}, nil)
	if _, err := p.Ensure(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty install dir")
	}
}

func TestVerifyStopsOnFirstFailure(t *testing.T) {
	runner := &fakeRunner{exitCodes: map[string]int{ExecutableName(TranscoderName): 1}}
	p := NewProvisioner(runner, nil)
	set := ExpectedToolSet("/opt/tools")

	err := p.Verify(context.Background(), set, nil)
	var perr *ProvisionError
	if !errors.As(err, &perr) || perr.Tool != TranscoderName {
		t.Fatalf("expected ffmpeg ProvisionError, got %v", err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected verify to stop after ffmpeg, got %d calls", len(runner.calls))
	}
	if runner.calls[0].Args[0] != "--version" || runner.calls[1].Args[0] != "-version" {
		t.Fatalf("unexpected version flags: %#v", runner.calls)
	}
}

func TestVerifyPassesWhenAllToolsRun(t *testing.T) {
	runner := &fakeRunner{}
	p := NewProvisioner(runner, nil)
	var lines int
	if err := p.Verify(context.Background(), model.ToolSet{FetcherPath: "a", TranscoderPath: "b", ProberPath: "c"}, func(toolrun.OutputStream, string) { lines++ }); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if len(runner.calls) != 3 || lines != 3 {
		t.Fatalf("expected three version checks, got calls=%d lines=%d", len(runner.calls), lines)
	}
}

func TestVersionsReportsFirstLinePerTool(t *testing.T) {
	p := NewProvisioner(&fakeRunner{}, nil)
	versions, err := p.Versions(context.Background(), ExpectedToolSet("/opt/tools"), nil)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	for _, tool := range []string{FetcherName, TranscoderName, ProberName} {
		if versions[tool] != "version 1.0" {
			t.Fatalf("%s version: got %q", tool, versions[tool])
		}
	}
}

func TestSafeJoinKeepsMembersInsideRoot(t *testing.T) {
	root := t.TempDir()
	for _, member := range []string{"", "..", "/"} {
		if _, err := safeJoin(root, member); err == nil {
			t.Fatalf("expected %q to be rejected", member)
		}
	}
	escaped, err := safeJoin(root, "../../evil")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(escaped) != root {
		t.Fatalf("traversal should collapse into root, got %q", escaped)
	}
	got, err := safeJoin(root, "build/bin/ffmpeg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != filepath.Join(root, "build", "bin", "ffmpeg") {
		t.Fatalf("unexpected join: %q", got)
	}
	if topLevelDir("build/bin/ffmpeg") != "build" || topLevelDir("ffmpeg") != "" {
		t.Fatal("unexpected top-level dir detection")
	}
}

func TestDefaultMirrors(t *testing.T) {
	if got := DefaultFetcherMirrors("windows", "amd64"); len(got) != 2 || filepath.Base(got[0]) != "yt-dlp.exe" {
		t.Fatalf("unexpected windows mirrors: %#v", got)
	}
	if got := DefaultFetcherMirrors("linux", "arm64"); filepath.Base(got[0]) != "yt-dlp_linux_aarch64" {
		t.Fatalf("unexpected linux arm64 mirror: %#v", got)
	}
	if len(DefaultTranscoderArchives("windows")) == 0 {
		t.Fatal("expected windows transcoder archives")
	}
	if len(DefaultTranscoderArchives("linux")) != 0 {
		t.Fatal("expected PATH fallback on linux")
	}
}

func assertContent(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if string(data) != want {
		t.Fatalf("content mismatch for %s: got %q want %q", path, data, want)
	}
}
