package pipeline

import "autoclipper/internal/model"

// Report aggregates per-video outcomes. Acquisition skips always precede
// segmentation skips in the merged list, whatever order they were added in.
type Report struct {
	clips        int
	succeeded    []string
	acquireSkips []model.Skip
	segmentSkips []model.Skip
}

func (rp *Report) AddAcquisitionSkips(skips ...model.Skip) {
	rp.acquireSkips = append(rp.acquireSkips, skips...)
}

// AddSegmentation records one segmented video. Only a successful video whose
// source is kept counts as succeeded.
func (rp *Report) AddSegmentation(video model.CachedVideo, created int, ok, sourceKept bool) {
	rp.clips += created
	if !ok {
		rp.segmentSkips = append(rp.segmentSkips, model.Skip{Label: video.Entry.Label(), Reason: model.ReasonTranscodeError})
		return
	}
	if sourceKept {
		rp.succeeded = append(rp.succeeded, video.Stem())
	}
}

// AddClips counts clips from a video whose outcome is unknown, such as one
// interrupted by cancellation.
func (rp *Report) AddClips(created int) {
	rp.clips += created
}

// Apply copies the aggregate into result, keeping its identity fields.
func (rp *Report) Apply(result model.RunResult) model.RunResult {
	result.ClipsCreated = rp.clips
	result.Succeeded = append([]string{}, rp.succeeded...)
	result.Skipped = make([]model.Skip, 0, len(rp.acquireSkips)+len(rp.segmentSkips))
	result.Skipped = append(result.Skipped, rp.acquireSkips...)
	result.Skipped = append(result.Skipped, rp.segmentSkips...)
	return result
}
