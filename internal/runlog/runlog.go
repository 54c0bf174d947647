// Package runlog records scheduler-triggered run lifecycles and sweeps
// runs that never reached a terminal state.
package runlog

import (
	"time"

	"github.com/trendloom/harvester/internal/domain"
)

// Recorder wraps a RunLogRepository with the start/finish lifecycle every
// scheduled or manual harvest run goes through.
type Recorder struct {
	Repo domain.RunLogRepository
}

// NewRecorder constructs a Recorder over the given repository.
func NewRecorder(repo domain.RunLogRepository) *Recorder { return &Recorder{Repo: repo} }

// Start inserts a running run_log row for the given platform and returns
// its id.
func (r *Recorder) Start(ctx domain.Context, platform domain.Platform, runVersionID string) (string, error) {
	return r.Repo.Create(ctx, domain.RunLog{
		Platform:     platform,
		Status:       domain.RunRunning,
		StartedAt:    time.Now().UTC(),
		RunVersionID: runVersionID,
	})
}

// Finish loads the run, stamps its end time and duration, and persists the
// given terminal status and counts.
func (r *Recorder) Finish(ctx domain.Context, id string, status domain.RunStatus, scraped, uploaded, invalid int, errMsg, errTrace string) error {
	rl, err := r.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ended := time.Now().UTC()
	rl.Status = status
	rl.EndedAt = &ended
	rl.DurationSeconds = ended.Sub(rl.StartedAt).Seconds()
	rl.RecordsScraped = scraped
	rl.RecordsUploaded = uploaded
	rl.RecordsInvalid = invalid
	rl.ErrorMessage = errMsg
	rl.ErrorTraceback = errTrace
	return r.Repo.Update(ctx, rl)
}
