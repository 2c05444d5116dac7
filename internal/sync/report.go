package sync

import (
	"fmt"

	"github.com/tovald/stocksync/internal/model"
)

// FailureLine is one failed intent as surfaced in the run summary.
type FailureLine struct {
	TargetID string           `json:"target_id"`
	Kind     model.IntentKind `json:"kind"`
	Err      string           `json:"error"`
}

// RunSummary aggregates the outcomes of one run.
type RunSummary struct {
	Applied       int                      `json:"applied"`
	Failed        int                      `json:"failed"`
	AppliedByKind map[model.IntentKind]int `json:"applied_by_kind,omitempty"`
	Failures      []FailureLine            `json:"failures,omitempty"`
}

// Summarize folds an outcome log into a RunSummary. Pure aggregation.
func Summarize(outcomes []model.Outcome) RunSummary {
	s := RunSummary{}
	for _, o := range outcomes {
		if o.Applied {
			s.Applied++
			if s.AppliedByKind == nil {
				s.AppliedByKind = make(map[model.IntentKind]int)
			}
			s.AppliedByKind[o.Intent.Kind]++
			continue
		}
		s.Failed++
		s.Failures = append(s.Failures, FailureLine{
			TargetID: o.Intent.TargetID,
			Kind:     o.Intent.Kind,
			Err:      o.Err,
		})
	}
	return s
}

// Notifiable reports whether the run warrants a notification: only runs that
// attempted at least one change do.
func (s RunSummary) Notifiable() bool { return s.Applied+s.Failed > 0 }

// String renders the one-line human-readable form used in the HTTP response.
func (s RunSummary) String() string {
	if !s.Notifiable() {
		return "sync complete: nothing to do"
	}
	return fmt.Sprintf("sync complete: %d applied, %d failed", s.Applied, s.Failed)
}
