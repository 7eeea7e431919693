package runstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autoclipper/internal/model"
)

func TestRunManifestsListNewestFirst(t *testing.T) {
	outputDir := t.TempDir()
	older := model.RunManifest{SchemaVersion: 1, RunID: "aaa", StartedAt: "2026-01-01T10:00:00Z", PlaylistTitle: "Old"}
	newer := model.RunManifest{SchemaVersion: 1, RunID: "bbb", StartedAt: "2026-02-01T10:00:00Z", PlaylistTitle: "New",
		Items: []model.RunItem{{VideoID: "v1", Status: model.StatusSegmented, Clips: 3}}}
	for _, m := range []model.RunManifest{older, newer} {
		if err := SaveRunManifest(outputDir, m); err != nil {
			t.Fatalf("save %s: %v", m.RunID, err)
		}
	}
	if err := os.WriteFile(filepath.Join(RunsDir(outputDir), "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, skipped, err := ListRunManifests(outputDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].RunID != "bbb" || got[1].RunID != "aaa" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Items[0].Clips != 3 {
		t.Fatalf("items not round-tripped: %+v", got[0].Items)
	}
	if len(skipped) != 1 || !strings.HasSuffix(skipped[0], "broken.json") {
		t.Fatalf("skipped: %v", skipped)
	}
}

func TestListRunManifestsWithoutRuns(t *testing.T) {
	got, skipped, err := ListRunManifests(t.TempDir())
	if err != nil || len(got) != 0 || len(skipped) != 0 {
		t.Fatalf("got=%v skipped=%v err=%v", got, skipped, err)
	}
}

func TestSaveRunManifestRequiresID(t *testing.T) {
	if err := SaveRunManifest(t.TempDir(), model.RunManifest{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestAppendRunLogAppendsBlocks(t *testing.T) {
	outputDir := t.TempDir()
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	first := model.RunResult{
		PlaylistTitle: "Mix",
		ClipsCreated:  3,
		Succeeded:     []string{"abc"},
		Skipped:       []model.Skip{{Label: "Lecture", Reason: model.ReasonTooLong}},
	}
	if err := AppendRunLog(outputDir, first, at); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := AppendRunLog(outputDir, model.RunResult{PlaylistTitle: "Second"}, at); err != nil {
		t.Fatalf("append second: %v", err)
	}

	data, err := os.ReadFile(RunLogPath(outputDir))
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{
		"=== Mix ===",
		"Time: 2026-03-04 05:06:07",
		"Clips created: 3",
		"  abc\n",
		"  Lecture - longer than 20 minutes\n",
		"=== Second ===",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("run log missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "=== Mix ===") > strings.Index(text, "=== Second ===") {
		t.Fatalf("blocks out of order:\n%s", text)
	}
}

func TestWriteJSONIsAtomicAndReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b.json")
	if err := WriteJSON(path, map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got map[string]int
	if err := ReadJSON(path, &got); err != nil || got["n"] != 1 {
		t.Fatalf("got=%v err=%v", got, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
