package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"autoclipper/internal/model"
	"autoclipper/internal/toolrun"
)

// PlaylistError means the metadata invocation failed. The exit code alone
// cannot tell login, private, age-restricted and unavailable apart.
type PlaylistError struct {
	URL      string
	ExitCode int
	Err      error
}

func (e *PlaylistError) Error() string {
	msg := fmt.Sprintf("could not load playlist %s (exit %d): login may be required, or the playlist is private, age-restricted or unavailable", e.URL, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PlaylistError) Unwrap() error {
	return e.Err
}

type Resolver struct {
	Runner      toolrun.Runner
	FetcherPath string
	Cookies     CookieOptions
	Logger      *slog.Logger
	Log         func(line string)
	OnLine      toolrun.LineFunc
}

// ResolvePlaylist lists the playlist entries without downloading media. On a
// successful cookies-file retry, r.Cookies is switched to the file so later
// downloads reuse what worked.
func (r *Resolver) ResolvePlaylist(ctx context.Context, sourceURL string) (model.PlaylistInfo, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return model.PlaylistInfo{}, fmt.Errorf("playlist URL is required")
	}

	code, lines, err := r.dump(ctx, sourceURL, r.Cookies)
	if !toolrun.Succeeded(code, err) {
		if fallback, ok := r.Cookies.FileFallback(); ok && ctx.Err() == nil {
			r.log("Browser cookie extraction failed, trying cookies.txt")
			code, lines, err = r.dump(ctx, sourceURL, fallback)
			if toolrun.Succeeded(code, err) {
				r.Cookies = fallback
			}
		}
	}
	if !toolrun.Succeeded(code, err) {
		return model.PlaylistInfo{URL: sourceURL, Title: sourceURL}, &PlaylistError{URL: sourceURL, ExitCode: code, Err: err}
	}

	info := ParsePlaylistLines(sourceURL, lines)
	r.logger().Info("resolved playlist", "url", sourceURL, "title", info.Title, "entries", len(info.Entries))
	return info, nil
}

func (r *Resolver) dump(ctx context.Context, sourceURL string, cookies CookieOptions) (int, []string, error) {
	inv := toolrun.Invocation{Path: r.FetcherPath, Args: metadataArgs(sourceURL, cookies)}
	return toolrun.Capture(ctx, r.Runner, inv, r.OnLine)
}

type dumpRecord struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Duration      flexSeconds `json:"duration"`
	PlaylistTitle *string     `json:"playlist_title"`
}

// flexSeconds accepts a number, a numeric string or null and truncates to
// whole seconds.
type flexSeconds int

func (f *flexSeconds) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*f = 0
		return nil
	}
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unq)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		*f = 0
		return nil
	}
	*f = flexSeconds(int(v))
	return nil
}

// ParsePlaylistLines parses one JSON record per line. Malformed lines are
// dropped; the first non-empty playlist_title names the playlist, falling back
// to the URL.
func ParsePlaylistLines(sourceURL string, lines []string) model.PlaylistInfo {
	info := model.PlaylistInfo{URL: sourceURL, Title: sourceURL}
	titled := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}
		var rec dumpRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if !titled && rec.PlaylistTitle != nil && strings.TrimSpace(*rec.PlaylistTitle) != "" {
			info.Title = *rec.PlaylistTitle
			titled = true
		}
		title := rec.Title
		if strings.TrimSpace(title) == "" {
			title = rec.ID
		}
		info.Entries = append(info.Entries, model.VideoEntry{
			ID:              strings.TrimSpace(rec.ID),
			Title:           title,
			DurationSeconds: int(rec.Duration),
		})
	}
	return info
}

func (r *Resolver) log(line string) {
	if r.Log != nil {
		r.Log(line)
	}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}
