package runlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendloom/harvester/internal/domain"
	"github.com/trendloom/harvester/internal/runlog"
)

type fakeRunLogRepo struct {
	running   []domain.RunLog
	updated   []domain.RunLog
	listErr   error
	updateErr error
	created   []domain.RunLog
}

func (r *fakeRunLogRepo) Create(_ context.Context, rl domain.RunLog) (string, error) {
	rl.ID = "new-id"
	r.created = append(r.created, rl)
	return rl.ID, nil
}
func (r *fakeRunLogRepo) Update(_ context.Context, rl domain.RunLog) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updated = append(r.updated, rl)
	return nil
}
func (r *fakeRunLogRepo) Get(_ context.Context, id string) (domain.RunLog, error) {
	for _, rl := range r.created {
		if rl.ID == id {
			return rl, nil
		}
	}
	return domain.RunLog{}, domain.ErrNotFound
}
func (r *fakeRunLogRepo) ListRunning(_ context.Context, _ time.Time) ([]domain.RunLog, error) {
	return r.running, r.listErr
}

func TestStuckRunSweeper_MarksStuckRunsFailed(t *testing.T) {
	repo := &fakeRunLogRepo{running: []domain.RunLog{
		{ID: "r1", Platform: domain.PlatformTikTok, Status: domain.RunRunning, StartedAt: time.Now().Add(-time.Hour)},
	}}
	sweeper := runlog.NewStuckRunSweeper(repo, 30*time.Minute, time.Hour)
	require.NotNil(t, sweeper)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	sweeper.Run(ctx)

	require.Len(t, repo.updated, 1)
	assert.Equal(t, domain.RunFailed, repo.updated[0].Status)
	assert.NotNil(t, repo.updated[0].EndedAt)
}

func TestStuckRunSweeper_NilRepoIsNoop(t *testing.T) {
	sweeper := runlog.NewStuckRunSweeper(nil, 0, 0)
	assert.Nil(t, sweeper)
	sweeper.Run(context.Background())
}

func TestRecorder_StartAndFinish(t *testing.T) {
	repo := &fakeRunLogRepo{}
	rec := runlog.NewRecorder(repo)
	id, err := rec.Start(context.Background(), domain.PlatformYouTube, "run-version-1")
	require.NoError(t, err)
	require.Equal(t, "new-id", id)

	require.NoError(t, rec.Finish(context.Background(), id, domain.RunCompleted, 10, 9, 1, "", ""))
	require.Len(t, repo.updated, 1)
	assert.Equal(t, domain.RunCompleted, repo.updated[0].Status)
	assert.Equal(t, 10, repo.updated[0].RecordsScraped)
}
