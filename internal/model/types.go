package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MaxVideoSeconds is the eligibility cap; longer videos are never acquired.
const MaxVideoSeconds = 20 * 60

type ToolSet struct {
	FetcherPath    string `json:"fetcher_path"`
	TranscoderPath string `json:"transcoder_path"`
	ProberPath     string `json:"prober_path"`
}

type PlaylistInfo struct {
	URL     string       `json:"url"`
	Title   string       `json:"title"`
	Entries []VideoEntry `json:"entries"`
}

type VideoEntry struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Label is the human name used in logs and skip records.
func (e VideoEntry) Label() string {
	if strings.TrimSpace(e.Title) != "" {
		return e.Title
	}
	return e.ID
}

func (e VideoEntry) Eligible() bool {
	return e.DurationSeconds <= MaxVideoSeconds
}

type CachedVideo struct {
	Entry     VideoEntry `json:"entry"`
	LocalPath string     `json:"local_path"`
}

func (v CachedVideo) Stem() string {
	base := filepath.Base(v.LocalPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type ClipSpec struct {
	Source       CachedVideo
	Index        int
	StartSeconds int
	EndSeconds   int
}

func (c ClipSpec) LengthSeconds() int {
	return c.EndSeconds - c.StartSeconds
}

// Path is {dir}/{stem}_{index}.{format}, next to the source video.
func (c ClipSpec) Path(format string) string {
	name := fmt.Sprintf("%s_%d.%s", c.Source.Stem(), c.Index, strings.TrimPrefix(format, "."))
	return filepath.Join(filepath.Dir(c.Source.LocalPath), name)
}

type Skip struct {
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

func (s Skip) String() string {
	return s.Label + " - " + s.Reason
}

const (
	ReasonTooLong           = "longer than 20 minutes"
	ReasonLoginAvailability = "login/availability"
	ReasonTranscodeError    = "transcode error"
)

type RunResult struct {
	RunID         string   `json:"run_id"`
	PlaylistURL   string   `json:"playlist_url"`
	PlaylistTitle string   `json:"playlist_title"`
	ClipsCreated  int      `json:"clips_created"`
	Succeeded     []string `json:"succeeded"`
	Skipped       []Skip   `json:"skipped"`
	Canceled      bool     `json:"canceled,omitempty"`
}
