package ytdlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"autoclipper/internal/model"
	"autoclipper/internal/toolrun"
)

// ObserveFunc reports the acquisition outcome of one entry.
type ObserveFunc func(entry model.VideoEntry, status, reason, localPath string)

type Acquirer struct {
	Runner      toolrun.Runner
	FetcherPath string
	OutputDir   string
	Format      string
	Cookies     CookieOptions
	Logger      *slog.Logger
	Log         func(line string)
	OnLine      toolrun.LineFunc
	Observe     ObserveFunc
}

// CachePath is the deterministic location of a source video.
func CachePath(outputDir, videoID, format string) string {
	return filepath.Join(outputDir, fmt.Sprintf("%s.%s", videoID, normalizeContainer(format)))
}

// Acquire downloads every eligible entry in order. A failing video becomes a
// skip; only cancellation stops the loop, returning what was acquired so far
// together with ctx.Err().
func (a *Acquirer) Acquire(ctx context.Context, entries []model.VideoEntry) ([]model.CachedVideo, []model.Skip, error) {
	videos := make([]model.CachedVideo, 0, len(entries))
	skipped := make([]model.Skip, 0)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return videos, skipped, err
		}
		if strings.TrimSpace(entry.ID) == "" {
			continue
		}
		video, skip, err := a.acquireOne(ctx, entry)
		if err != nil {
			return videos, skipped, err
		}
		if skip != nil {
			skipped = append(skipped, *skip)
			continue
		}
		videos = append(videos, video)
	}
	return videos, skipped, nil
}

func (a *Acquirer) acquireOne(ctx context.Context, entry model.VideoEntry) (model.CachedVideo, *model.Skip, error) {
	label := entry.Label()
	if !entry.Eligible() {
		a.log(fmt.Sprintf("Skipping %s (longer than 20 min)", label))
		a.observe(entry, model.StatusIneligible, model.ReasonTooLong, "")
		return model.CachedVideo{}, &model.Skip{Label: label, Reason: model.ReasonTooLong}, nil
	}

	outPath := CachePath(a.OutputDir, entry.ID, a.Format)
	video := model.CachedVideo{Entry: entry, LocalPath: outPath}
	// Existence is the only cache check: a truncated file from an
	// interrupted download is reused as if complete.
	if _, err := os.Stat(outPath); err == nil {
		a.log(fmt.Sprintf("Using cached %s", filepath.Base(outPath)))
		a.observe(entry, model.StatusCached, "", outPath)
		return video, nil, nil
	}

	a.log(fmt.Sprintf("Downloading %s", label))
	url := VideoURL(entry.ID)
	code, err := a.download(ctx, url, outPath, PrimaryFormat(a.Format))
	if !toolrun.Succeeded(code, err) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return model.CachedVideo{}, nil, ctxErr
		}
		a.logger().Warn("primary format failed, retrying with fallback", "video_id", entry.ID, "exit_code", code, "error", err)
		code, err = a.download(ctx, url, outPath, FallbackFormat)
		if !toolrun.Succeeded(code, err) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.CachedVideo{}, nil, ctxErr
			}
			a.log(fmt.Sprintf("Skipped: %s (download error)", label))
			a.observe(entry, model.StatusDownloadFailed, model.ReasonLoginAvailability, "")
			return model.CachedVideo{}, &model.Skip{Label: label, Reason: model.ReasonLoginAvailability}, nil
		}
	}
	a.observe(entry, model.StatusDownloaded, "", outPath)
	return video, nil, nil
}

func (a *Acquirer) download(ctx context.Context, videoURL, outPath, format string) (int, error) {
	inv := toolrun.Invocation{Path: a.FetcherPath, Args: downloadArgs(videoURL, outPath, a.Cookies, format)}
	return a.Runner.Run(ctx, inv, a.OnLine)
}

func (a *Acquirer) observe(entry model.VideoEntry, status, reason, localPath string) {
	if a.Observe != nil {
		a.Observe(entry, status, reason, localPath)
	}
}

func (a *Acquirer) log(line string) {
	if a.Log != nil {
		a.Log(line)
	}
}

func (a *Acquirer) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.Logger
}
