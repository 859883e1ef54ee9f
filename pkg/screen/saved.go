package screen

import (
	"context"
	"slices"

	"github.com/iopps/iopps-sync/pkg/cache"
	"github.com/iopps/iopps-sync/pkg/models"
	"github.com/iopps/iopps-sync/pkg/optimistic"
)

// Saved is the rendered set of saved jobs with its count badge.
type Saved struct {
	JobIDs []string
	Count  int
}

// SavedJobsScreen shows and toggles a user's saved jobs.
type SavedJobsScreen struct {
	deps   *Deps
	userID string
	status statusBox
	saved  *optimistic.Cell[Saved]
}

// NewSavedJobsScreen creates the saved jobs view for userID.
func NewSavedJobsScreen(d *Deps, userID string) *SavedJobsScreen {
	return &SavedJobsScreen{
		deps:   d,
		userID: userID,
		saved:  optimistic.NewCell(Saved{}),
	}
}

func (s *SavedJobsScreen) key() cache.Key { return cache.SavedJobsKey(s.userID) }

func (s *SavedJobsScreen) Load(ctx context.Context, force bool) error {
	res, err := load(ctx, s.deps, s.key(), cache.TTLMedium, force, func(ctx context.Context) (models.SavedJobs, error) {
		return s.deps.Service.ListSavedJobs(ctx, s.userID)
	})
	if err == nil {
		s.saved.Store(Saved{JobIDs: res.Value.JobIDs, Count: len(res.Value.JobIDs)})
	}
	return s.status.finish(s.deps.logger(), "saved_jobs", res.FromCache, err)
}

func (s *SavedJobsScreen) Saved() Saved { return s.saved.Load() }

func (s *SavedJobsScreen) IsSaved(jobID string) bool {
	return slices.Contains(s.saved.Load().JobIDs, jobID)
}

func (s *SavedJobsScreen) Status() Status { return s.status.get() }

// Toggle saves jobID if it is not saved and unsaves it otherwise.
func (s *SavedJobsScreen) Toggle(ctx context.Context, jobID string) error {
	var wasSaved bool
	out, err := optimistic.Mutate(ctx, s.deps.Mutations, s.saved, optimistic.Mutation[Saved, struct{}]{
		Name: "toggle_saved_job",
		Key:  s.key().String(),
		Apply: func(cur Saved) Saved {
			wasSaved = slices.Contains(cur.JobIDs, jobID)
			if wasSaved {
				ids := slices.DeleteFunc(slices.Clone(cur.JobIDs), func(id string) bool { return id == jobID })
				return Saved{JobIDs: ids, Count: cur.Count - 1}
			}
			ids := append(slices.Clip(slices.Clone(cur.JobIDs)), jobID)
			return Saved{JobIDs: ids, Count: cur.Count + 1}
		},
		Commit: func(ctx context.Context) (struct{}, error) {
			if wasSaved {
				return struct{}{}, s.deps.Service.UnsaveJob(ctx, s.userID, jobID)
			}
			return struct{}{}, s.deps.Service.SaveJob(ctx, s.userID, jobID)
		},
	})
	if err != nil {
		return err
	}
	cache.Set(ctx, s.deps.cache(), s.key(), models.SavedJobs{UserID: s.userID, JobIDs: out.State.JobIDs}, cache.TTLMedium)
	return nil
}
