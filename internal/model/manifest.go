package model

// RunManifest is the per-run summary written next to the clips.
type RunManifest struct {
	SchemaVersion int       `json:"schema_version"`
	RunID         string    `json:"run_id"`
	StartedAt     string    `json:"started_at"`
	FinishedAt    string    `json:"finished_at,omitempty"`
	PlaylistURL   string    `json:"playlist_url"`
	PlaylistTitle string    `json:"playlist_title"`
	Format        string    `json:"format"`
	ClipLength    int       `json:"clip_length_seconds"`
	Mute          bool      `json:"mute,omitempty"`
	DeleteSource  bool      `json:"delete_original,omitempty"`
	ClipsCreated  int       `json:"clips_created"`
	Canceled      bool      `json:"canceled,omitempty"`
	Error         string    `json:"error,omitempty"`
	Items         []RunItem `json:"items"`
}

type RunItem struct {
	Index           int    `json:"index"`
	VideoID         string `json:"video_id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
	LocalPath       string `json:"local_path,omitempty"`
	Clips           int    `json:"clips,omitempty"`
}

// ItemByID returns the item tracking videoID, or nil.
func (m *RunManifest) ItemByID(videoID string) *RunItem {
	for i := range m.Items {
		if m.Items[i].VideoID == videoID {
			return &m.Items[i]
		}
	}
	return nil
}

// Counts tallies items per status.
func (m *RunManifest) Counts() map[string]int {
	out := make(map[string]int, len(allowedTransitions))
	for _, it := range m.Items {
		out[it.Status]++
	}
	return out
}
