package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"autoclipper/internal/model"
)

const StateDirName = ".autoclipper"

func RunsDir(outputDir string) string {
	return filepath.Join(outputDir, StateDirName, "runs")
}

func RunManifestPath(outputDir, runID string) string {
	return filepath.Join(RunsDir(outputDir), runID+".json")
}

func SaveRunManifest(outputDir string, manifest model.RunManifest) error {
	if strings.TrimSpace(manifest.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	return WriteJSON(RunManifestPath(outputDir, manifest.RunID), manifest)
}

func LoadRunManifest(path string) (model.RunManifest, error) {
	var manifest model.RunManifest
	if err := ReadJSON(path, &manifest); err != nil {
		return model.RunManifest{}, err
	}
	return manifest, nil
}

// ListRunManifests returns every readable run summary, newest first.
// Unreadable files are reported in skipped rather than failing the listing.
func ListRunManifests(outputDir string) ([]model.RunManifest, []string, error) {
	dir := RunsDir(outputDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.RunManifest{}, nil, nil
		}
		return nil, nil, fmt.Errorf("read runs directory %s: %w", dir, err)
	}

	manifests := make([]model.RunManifest, 0, len(entries))
	var skipped []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		m, err := LoadRunManifest(path)
		if err != nil {
			skipped = append(skipped, path)
			continue
		}
		manifests = append(manifests, m)
	}
	sort.SliceStable(manifests, func(i, j int) bool {
		return manifests[i].StartedAt > manifests[j].StartedAt
	})
	return manifests, skipped, nil
}
