package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler runs the collection cycle at a fixed interval.
type Scheduler struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	task      gocron.Task
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

func jobOptions() []gocron.JobOption {
	return []gocron.JobOption{
		gocron.WithName("collect"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	}
}

// Schedule registers the cycle. A run that is still busy when the next one
// is due is skipped.
func (s *Scheduler) Schedule(ctx context.Context, interval time.Duration, cycle func(context.Context)) error {
	s.task = gocron.NewTask(func() { cycle(ctx) })
	job, err := s.scheduler.NewJob(gocron.DurationJob(interval), s.task, jobOptions()...)
	if err != nil {
		return fmt.Errorf("failed to schedule collection: %w", err)
	}
	s.job = job
	return nil
}

// Reschedule changes the interval of the registered cycle.
func (s *Scheduler) Reschedule(interval time.Duration) error {
	if s.job == nil {
		return fmt.Errorf("no collection scheduled")
	}
	job, err := s.scheduler.Update(s.job.ID(), gocron.DurationJob(interval), s.task, jobOptions()...)
	if err != nil {
		return fmt.Errorf("failed to reschedule collection: %w", err)
	}
	s.job = job
	return nil
}

// NextRun reports when the cycle runs next.
func (s *Scheduler) NextRun() (time.Time, error) {
	if s.job == nil {
		return time.Time{}, fmt.Errorf("no collection scheduled")
	}
	return s.job.NextRun()
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop waits for a running cycle and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
