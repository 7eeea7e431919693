package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"autoclipper/internal/model"
	"autoclipper/internal/toolrun"
)

// Segmenter cuts a local video into fixed-length clips next to the source.
type Segmenter struct {
	Runner         toolrun.Runner
	TranscoderPath string
	ProberPath     string
	ClipLength     int
	Mute           bool
	Format         string
	Logger         *slog.Logger
	Log            func(line string)
	Progress       func(percent float64)
	OnLine         toolrun.LineFunc
}

// ProbeDuration returns the container duration in whole seconds. Any probe
// failure reads as 0, which yields no clips rather than an error.
func (s *Segmenter) ProbeDuration(ctx context.Context, path string) int {
	inv := toolrun.Invocation{
		Path: s.ProberPath,
		Args: []string{"-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path},
	}
	code, lines, err := toolrun.Capture(ctx, s.Runner, inv, nil)
	if !toolrun.Succeeded(code, err) {
		s.logger().Warn("probe failed", "path", path, "exit_code", code, "error", err)
		return 0
	}
	raw := strings.TrimSpace(strings.Join(lines, ""))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		s.logger().Warn("probe output not a duration", "path", path, "output", raw)
		return 0
	}
	return int(v)
}

// PlanClips splits [0, duration) into ceil(duration/length) back-to-back
// windows; the last one ends exactly at duration.
func PlanClips(source model.CachedVideo, duration, length int) []model.ClipSpec {
	if duration <= 0 || length <= 0 {
		return nil
	}
	clips := make([]model.ClipSpec, 0, (duration+length-1)/length)
	for start, idx := 0, 0; start < duration; start, idx = start+length, idx+1 {
		clips = append(clips, model.ClipSpec{
			Source:       source,
			Index:        idx,
			StartSeconds: start,
			EndSeconds:   min(start+length, duration),
		})
	}
	return clips
}

func (s *Segmenter) clipArgs(clip model.ClipSpec) []string {
	args := []string{
		"-y",
		"-i", clip.Source.LocalPath,
		"-ss", strconv.Itoa(clip.StartSeconds),
		"-t", strconv.Itoa(clip.LengthSeconds()),
	}
	if s.Mute {
		args = append(args, "-an")
	}
	return append(args, clip.Path(s.Format))
}

// Segment cuts video and reports how many clips were written. The first
// failing clip stops the video and ok is false; clips already written stay on
// disk and are counted.
func (s *Segmenter) Segment(ctx context.Context, video model.CachedVideo) (int, bool) {
	if s.ClipLength <= 0 {
		s.logger().Error("invalid clip length", "clip_length", s.ClipLength)
		return 0, false
	}
	s.log(fmt.Sprintf("Clipping %s", filepath.Base(video.LocalPath)))
	duration := s.ProbeDuration(ctx, video.LocalPath)
	created := 0
	for _, clip := range PlanClips(video, duration, s.ClipLength) {
		code, err := s.Runner.Run(ctx, toolrun.Invocation{Path: s.TranscoderPath, Args: s.clipArgs(clip)}, s.OnLine)
		if !toolrun.Succeeded(code, err) {
			// A refused launch after cancellation is not a transcode failure.
			if ctx.Err() != nil {
				return created, false
			}
			s.logger().Warn("clip failed", "source", video.LocalPath, "index", clip.Index, "exit_code", code, "error", err)
			s.log(fmt.Sprintf("Skipped: %s (ffmpeg error)", video.Entry.Label()))
			return created, false
		}
		created++
		s.progress(min(100, float64(clip.EndSeconds)/float64(duration)*100))
	}
	return created, true
}

func (s *Segmenter) log(line string) {
	if s.Log != nil {
		s.Log(line)
	}
}

func (s *Segmenter) progress(percent float64) {
	if s.Progress != nil {
		s.Progress(percent)
	}
}

func (s *Segmenter) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
