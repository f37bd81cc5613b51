// Package pipeline runs the batch phases of a conversion session over the
// rows of an import: registry auto-resolution, normalization with
// validation, and the review helpers that edit rows afterwards.
package pipeline

// DefaultReportEvery is the progress cadence used when none is configured.
const DefaultReportEvery = 250

// Progress is a coarse completion event of a batch phase.
type Progress struct {
	Phase string `json:"phase"`
	Done  int    `json:"done"`
	Total int    `json:"total"`
}

// ProgressFunc receives progress events. It may be nil.
type ProgressFunc func(Progress)

// Options tunes a batch phase.
type Options struct {
	ReportEvery int
	Progress    ProgressFunc
}

// tick reports the i-th (zero-based) of total items: on the first item,
// every ReportEvery items after it, and always on the last.
func (o Options) tick(phase string, i, total int) {
	if o.Progress == nil || total <= 0 {
		return
	}
	every := o.ReportEvery
	if every <= 0 {
		every = DefaultReportEvery
	}
	if i%every == 0 || i == total-1 {
		o.Progress(Progress{Phase: phase, Done: i + 1, Total: total})
	}
}
