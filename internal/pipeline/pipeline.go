package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoclipper/internal/config"
	"autoclipper/internal/ffmpeg"
	"autoclipper/internal/model"
	"autoclipper/internal/provision"
	"autoclipper/internal/runstore"
	"autoclipper/internal/toolrun"
	"autoclipper/internal/ytdlp"
)

const manifestSchemaVersion = 1

// Sink receives user-facing progress. Implementations must be safe to call
// from the goroutine running the pipeline.
type Sink interface {
	Log(line string)
	Progress(percent float64)
}

// ToolOutputSink is implemented by sinks that want raw tool output apart
// from pipeline messages. Other sinks receive tool lines through Log.
type ToolOutputSink interface {
	ToolOutput(stream toolrun.OutputStream, line string)
}

// Provisioner is satisfied by *provision.Provisioner.
type Provisioner interface {
	Ensure(ctx context.Context, installDir string) (model.ToolSet, error)
	Verify(ctx context.Context, set model.ToolSet, onLine toolrun.LineFunc) error
}

type Options struct {
	PlaylistURL    string
	OutputDir      string
	InstallDir     string
	ClipLength     int
	Format         string
	Mute           bool
	DeleteOriginal bool
	Cookies        ytdlp.CookieOptions

	Sink        Sink
	Logger      *slog.Logger
	Runner      toolrun.Runner
	Provisioner Provisioner
	Now         func() time.Time
}

type discardSink struct{}

func (discardSink) Log(string)       {}
func (discardSink) Progress(float64) {}

func normalizeOptions(opts Options) (Options, error) {
	opts.PlaylistURL = strings.TrimSpace(opts.PlaylistURL)
	if opts.PlaylistURL == "" {
		return Options{}, fmt.Errorf("playlist URL is required")
	}
	opts.OutputDir = strings.TrimSpace(opts.OutputDir)
	if opts.OutputDir == "" {
		return Options{}, fmt.Errorf("output directory is required")
	}
	opts.InstallDir = strings.TrimSpace(opts.InstallDir)
	if opts.InstallDir == "" {
		return Options{}, fmt.Errorf("install directory is required")
	}
	if opts.ClipLength <= 0 {
		return Options{}, fmt.Errorf("clip length must be > 0 seconds, got %d", opts.ClipLength)
	}
	opts.Format = config.NormalizeFormat(opts.Format)
	if !config.ValidFormat(opts.Format) {
		return Options{}, fmt.Errorf("unsupported format %q (use %s)", opts.Format, strings.Join(config.SupportedFormats, ", "))
	}
	if opts.Sink == nil {
		opts.Sink = discardSink{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Runner == nil {
		opts.Runner = toolrun.NewExecRunner(opts.Logger)
	}
	if opts.Provisioner == nil {
		p := provision.NewProvisioner(opts.Runner, opts.Logger)
		p.Notify = opts.Sink.Log
		opts.Provisioner = p
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts, nil
}

// Run provisions the tools, resolves the playlist, then acquires and segments
// every video one at a time. Tool and playlist failures are returned as
// errors; per-video failures end up in RunResult.Skipped. Cancellation is
// honored between videos and yields the partial result with ctx.Err().
func Run(ctx context.Context, opts Options) (model.RunResult, error) {
	opts, err := normalizeOptions(opts)
	if err != nil {
		return model.RunResult{}, err
	}

	r := &run{
		opts: opts,
		log:  opts.Logger,
		result: model.RunResult{
			RunID:         uuid.NewString(),
			PlaylistURL:   opts.PlaylistURL,
			PlaylistTitle: opts.PlaylistURL,
			Succeeded:     []string{},
			Skipped:       []model.Skip{},
		},
	}
	r.manifest = model.RunManifest{
		SchemaVersion: manifestSchemaVersion,
		RunID:         r.result.RunID,
		StartedAt:     opts.Now().UTC().Format(time.RFC3339),
		PlaylistURL:   opts.PlaylistURL,
		PlaylistTitle: opts.PlaylistURL,
		Format:        opts.Format,
		ClipLength:    opts.ClipLength,
		Mute:          opts.Mute,
		DeleteSource:  opts.DeleteOriginal,
		Items:         []model.RunItem{},
	}

	lock, err := runstore.AcquireOutputLock(opts.OutputDir, r.result.RunID)
	if err != nil {
		return r.result, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.log.Warn("release output lock", "error", err)
		}
	}()

	r.log.Info("run started", "run_id", r.result.RunID, "url", opts.PlaylistURL, "output_dir", opts.OutputDir)
	runErr := r.execute(ctx)
	if runErr != nil && !isCancel(runErr) {
		r.manifest.Error = runErr.Error()
	}
	r.finish(runErr)
	return r.result, runErr
}

type run struct {
	opts     Options
	log      *slog.Logger
	report   Report
	result   model.RunResult
	manifest model.RunManifest
	resolved bool
}

func (r *run) execute(ctx context.Context) error {
	tools, err := r.opts.Provisioner.Ensure(ctx, r.opts.InstallDir)
	if err != nil {
		return err
	}
	if err := r.opts.Provisioner.Verify(ctx, tools, nil); err != nil {
		return fmt.Errorf("yt-dlp or ffmpeg failed to run, reinstall and try again: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	forward := r.toolOutput()
	cookies := r.opts.Cookies.DefaultCookiesFile(r.opts.InstallDir)
	resolver := &ytdlp.Resolver{
		Runner:      r.opts.Runner,
		FetcherPath: tools.FetcherPath,
		Cookies:     cookies,
		Logger:      r.log,
		Log:         r.opts.Sink.Log,
		OnLine:      forward,
	}
	info, err := resolver.ResolvePlaylist(ctx, r.opts.PlaylistURL)
	if err != nil {
		return err
	}
	r.resolved = true
	r.result.PlaylistTitle = info.Title
	r.manifest.PlaylistTitle = info.Title
	r.trackEntries(info.Entries)

	acquirer := &ytdlp.Acquirer{
		Runner:      r.opts.Runner,
		FetcherPath: tools.FetcherPath,
		OutputDir:   r.opts.OutputDir,
		Format:      r.opts.Format,
		Cookies:     resolver.Cookies,
		Logger:      r.log,
		Log:         r.opts.Sink.Log,
		OnLine:      forward,
		Observe:     r.observeAcquire,
	}
	videos, acquireSkips, err := acquirer.Acquire(ctx, info.Entries)
	r.report.AddAcquisitionSkips(acquireSkips...)
	if err != nil {
		return err
	}

	segmenter := &ffmpeg.Segmenter{
		Runner:         r.opts.Runner,
		TranscoderPath: tools.TranscoderPath,
		ProberPath:     tools.ProberPath,
		ClipLength:     r.opts.ClipLength,
		Mute:           r.opts.Mute,
		Format:         r.opts.Format,
		Logger:         r.log,
		Log:            r.opts.Sink.Log,
		Progress:       r.opts.Sink.Progress,
		OnLine:         forward,
	}
	for _, video := range videos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.segment(ctx, segmenter, video); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) toolOutput() toolrun.LineFunc {
	if ts, ok := r.opts.Sink.(ToolOutputSink); ok {
		return ts.ToolOutput
	}
	return func(_ toolrun.OutputStream, line string) { r.opts.Sink.Log(line) }
}

func (r *run) segment(ctx context.Context, segmenter *ffmpeg.Segmenter, video model.CachedVideo) error {
	item := r.manifest.ItemByID(video.Entry.ID)
	r.transition(item, model.StatusSegmenting, "")
	r.opts.Sink.Progress(0)

	created, ok := segmenter.Segment(ctx, video)
	if item != nil {
		item.Clips = created
	}
	// A tool refused to start because of cancellation; the video is left
	// in segmenting rather than reported as a transcode failure.
	if err := ctx.Err(); err != nil {
		r.report.AddClips(created)
		return err
	}
	if ok {
		r.transition(item, model.StatusSegmented, "")
	} else {
		r.transition(item, model.StatusTranscodeFailed, model.ReasonTranscodeError)
	}

	if r.opts.DeleteOriginal {
		if err := os.Remove(video.LocalPath); err != nil {
			r.log.Debug("delete original failed", "path", video.LocalPath, "error", err)
		}
	}
	r.report.AddSegmentation(video, created, ok, !r.opts.DeleteOriginal)
	return nil
}

func (r *run) trackEntries(entries []model.VideoEntry) {
	for i, e := range entries {
		if strings.TrimSpace(e.ID) == "" || r.manifest.ItemByID(e.ID) != nil {
			continue
		}
		item := model.RunItem{
			Index:           i + 1,
			VideoID:         e.ID,
			Title:           e.Label(),
			DurationSeconds: e.DurationSeconds,
		}
		if err := model.TransitionItemStatus(&item, model.StatusPending, ""); err != nil {
			r.log.Warn("track item", "video_id", e.ID, "error", err)
		}
		r.manifest.Items = append(r.manifest.Items, item)
	}
}

func (r *run) observeAcquire(entry model.VideoEntry, status, reason, localPath string) {
	item := r.manifest.ItemByID(entry.ID)
	r.transition(item, status, reason)
	if item != nil && localPath != "" {
		item.LocalPath = localPath
	}
}

// transition records status changes in the run summary. A rejected
// transition only affects bookkeeping, so it is logged and ignored.
func (r *run) transition(item *model.RunItem, to, reason string) {
	if item == nil {
		return
	}
	if err := model.TransitionItemStatus(item, to, reason); err != nil {
		r.log.Warn("item status", "video_id", item.VideoID, "error", err)
	}
}

func (r *run) finish(runErr error) {
	now := r.opts.Now()
	r.result = r.report.Apply(r.result)
	r.result.Canceled = isCancel(runErr)
	r.manifest.Canceled = r.result.Canceled
	r.manifest.ClipsCreated = r.result.ClipsCreated
	r.manifest.FinishedAt = now.UTC().Format(time.RFC3339)

	if err := runstore.SaveRunManifest(r.opts.OutputDir, r.manifest); err != nil {
		r.log.Warn("save run summary", "error", err)
	}
	if !r.resolved {
		return
	}
	if err := runstore.AppendRunLog(r.opts.OutputDir, r.result, now); err != nil {
		r.log.Warn("append run log", "error", err)
	}
	r.log.Info("run finished",
		"run_id", r.result.RunID,
		"clips", r.result.ClipsCreated,
		"succeeded", len(r.result.Succeeded),
		"skipped", len(r.result.Skipped),
		"canceled", r.result.Canceled,
	)
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
