package screen

import (
	"context"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/models"
	"github.com/iopps/iopps-sync/pkg/optimistic"
)

// JobsScreen lists open job postings.
type JobsScreen struct {
	deps   *Deps
	status statusBox
	jobs   *optimistic.Cell[[]models.Job]
}

// NewJobsScreen creates the active jobs listing.
func NewJobsScreen(d *Deps) *JobsScreen {
	return &JobsScreen{deps: d, jobs: optimistic.NewCell[[]models.Job](nil)}
}

// Load reads the job list. With force set the cache is bypassed.
func (s *JobsScreen) Load(ctx context.Context, force bool) error {
	res, err := load(ctx, s.deps, cache.Jobs, cache.TTLMedium, force, s.deps.Service.ListJobs)
	if err == nil {
		s.jobs.Store(res.Value)
	}
	return s.status.finish(s.deps.logger(), "jobs", res.FromCache, err)
}

func (s *JobsScreen) Jobs() []models.Job { return s.jobs.Load() }

func (s *JobsScreen) Status() Status { return s.status.get() }
