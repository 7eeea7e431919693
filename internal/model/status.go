package model

import "fmt"

const (
	StatusPending         = "pending"
	StatusIneligible      = "ineligible"
	StatusCached          = "cached"
	StatusDownloaded      = "downloaded"
	StatusDownloadFailed  = "download_failed"
	StatusSegmenting      = "segmenting"
	StatusSegmented       = "segmented"
	StatusTranscodeFailed = "transcode_failed"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusIneligible:     true,
		StatusCached:         true,
		StatusDownloaded:     true,
		StatusDownloadFailed: true,
	},
	StatusIneligible: {},
	StatusCached: {
		StatusSegmenting: true,
	},
	StatusDownloaded: {
		StatusSegmenting: true,
	},
	StatusDownloadFailed: {},
	StatusSegmenting: {
		StatusSegmented:       true,
		StatusTranscodeFailed: true,
	},
	StatusSegmented:       {},
	StatusTranscodeFailed: {},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether no further transition is possible from status.
func IsTerminal(status string) bool {
	next, ok := allowedTransitions[status]
	return ok && len(next) == 0
}

func TransitionItemStatus(item *RunItem, toStatus string, reason string) error {
	from := item.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid item status transition: %q -> %q (video_id=%s)", from, toStatus, item.VideoID)
	}
	item.Status = toStatus
	item.Reason = reason
	return nil
}
