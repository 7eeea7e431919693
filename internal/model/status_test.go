package model

import "testing"

func TestCanTransition_AllowsExpectedPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{"", StatusPending},
		{StatusPending, StatusIneligible},
		{StatusPending, StatusCached},
		{StatusPending, StatusDownloaded},
		{StatusPending, StatusDownloadFailed},
		{StatusCached, StatusSegmenting},
		{StatusDownloaded, StatusSegmenting},
		{StatusSegmenting, StatusSegmented},
		{StatusSegmenting, StatusTranscodeFailed},
	}

	for _, tc := range cases {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransition_RejectsInvalidPaths(t *testing.T) {
	cases := []struct {
		from string
		to   string
	}{
		{StatusIneligible, StatusDownloaded},
		{StatusDownloadFailed, StatusSegmenting},
		{StatusPending, StatusSegmented},
		{StatusSegmented, StatusSegmenting},
		{"not_a_state", StatusPending},
	}

	for _, tc := range cases {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("expected transition %q -> %q to be rejected", tc.from, tc.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []string{StatusIneligible, StatusDownloadFailed, StatusSegmented, StatusTranscodeFailed} {
		if !IsTerminal(s) {
			t.Fatalf("expected %q to be terminal", s)
		}
	}
	for _, s := range []string{StatusPending, StatusCached, StatusSegmenting, "bogus"} {
		if IsTerminal(s) {
			t.Fatalf("expected %q to be non-terminal", s)
		}
	}
}

func TestTransitionItemStatus_BlocksIllegalTransition(t *testing.T) {
	item := RunItem{VideoID: "vid-1", Status: StatusIneligible}

	if err := TransitionItemStatus(&item, StatusDownloaded, ""); err == nil {
		t.Fatalf("expected illegal transition error")
	}
	if item.Status != StatusIneligible {
		t.Fatalf("status changed on rejected transition: %q", item.Status)
	}
}
