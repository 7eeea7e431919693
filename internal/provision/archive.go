package provision

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// extractTools pulls the first archive entry named like each wanted binary,
// renames it to its canonical path, then removes every extracted top-level
// directory.
func extractTools(archivePath, installDir string, wanted map[string]string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	names := make([]string, 0, len(wanted))
	for name := range wanted {
		names = append(names, name)
	}
	sort.Strings(names)

	topDirs := map[string]struct{}{}
	defer func() {
		for dir := range topDirs {
			_ = os.RemoveAll(filepath.Join(installDir, dir))
		}
	}()

	for _, name := range names {
		member := findMember(reader.File, name)
		if member == nil {
			return fmt.Errorf("%s not found in archive %s", name, filepath.Base(archivePath))
		}
		extracted, err := extractMember(member, installDir)
		if err != nil {
			return err
		}
		if top := topLevelDir(member.Name); top != "" {
			topDirs[top] = struct{}{}
		}
		if err := os.Rename(extracted, wanted[name]); err != nil {
			return fmt.Errorf("rename %s: %w", extracted, err)
		}
		if err := makeExecutable(wanted[name]); err != nil {
			return err
		}
	}
	return nil
}

func findMember(files []*zip.File, name string) *zip.File {
	for _, f := range files {
		if f.FileInfo().IsDir() {
			continue
		}
		if path.Base(f.Name) == name {
			return f
		}
	}
	return nil
}

func extractMember(f *zip.File, installDir string) (string, error) {
	dst, err := safeJoin(installDir, f.Name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create parent for %s: %w", dst, err)
	}
	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open archive member %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return "", fmt.Errorf("extract %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

func safeJoin(root, member string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(member, "\\", "/"))
	dst := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	rel, err := filepath.Rel(root, dst)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("archive member %q escapes install directory", member)
	}
	return dst, nil
}

func topLevelDir(member string) string {
	member = strings.TrimPrefix(strings.ReplaceAll(member, "\\", "/"), "/")
	idx := strings.Index(member, "/")
	if idx <= 0 {
		return ""
	}
	return member[:idx]
}

func writeStream(dst string, r io.Reader) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create parent for %s: %w", dst, err)
	}
	tmp, err := os.CreateTemp(dir, ".autoclipper-dl-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", dst, err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", dst, err)
	}
	_ = os.Remove(dst)
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename into %s: %w", dst, err)
	}
	return nil
}
