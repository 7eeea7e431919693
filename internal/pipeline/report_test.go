package pipeline

import (
	"testing"

	"autoclipper/internal/model"
)

func TestReportOrdersAcquisitionSkipsFirst(t *testing.T) {
	var rp Report
	bad := model.CachedVideo{Entry: model.VideoEntry{ID: "b", Title: "Broken"}, LocalPath: "/out/b.mp4"}
	good := model.CachedVideo{Entry: model.VideoEntry{ID: "g", Title: "Good"}, LocalPath: "/out/g.mp4"}

	rp.AddSegmentation(bad, 1, false, true)
	rp.AddAcquisitionSkips(model.Skip{Label: "Long", Reason: model.ReasonTooLong})
	rp.AddSegmentation(good, 3, true, true)
	rp.AddClips(2)

	res := rp.Apply(model.RunResult{RunID: "r1", PlaylistTitle: "Mix"})
	if res.RunID != "r1" || res.PlaylistTitle != "Mix" {
		t.Fatalf("identity fields lost: %+v", res)
	}
	if res.ClipsCreated != 6 {
		t.Fatalf("expected 6 clips, got %d", res.ClipsCreated)
	}
	if len(res.Succeeded) != 1 || res.Succeeded[0] != "g" {
		t.Fatalf("succeeded mismatch: %v", res.Succeeded)
	}
	want := []model.Skip{
		{Label: "Long", Reason: model.ReasonTooLong},
		{Label: "Broken", Reason: model.ReasonTranscodeError},
	}
	if len(res.Skipped) != len(want) {
		t.Fatalf("skipped mismatch: %+v", res.Skipped)
	}
	for i := range want {
		if res.Skipped[i] != want[i] {
			t.Fatalf("skip %d: got %+v want %+v", i, res.Skipped[i], want[i])
		}
	}
}

func TestReportDeletedSourceIsNotSucceeded(t *testing.T) {
	var rp Report
	v := model.CachedVideo{Entry: model.VideoEntry{ID: "v"}, LocalPath: "/out/v.mp4"}
	rp.AddSegmentation(v, 2, true, false)

	res := rp.Apply(model.RunResult{})
	if res.ClipsCreated != 2 || len(res.Succeeded) != 0 || len(res.Skipped) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
