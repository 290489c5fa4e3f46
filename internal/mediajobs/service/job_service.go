package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aetherium-labs/aetherium-backend/internal/flows"
	"github.com/aetherium-labs/aetherium-backend/internal/logging"
	"github.com/aetherium-labs/aetherium-backend/internal/media"
	"github.com/aetherium-labs/aetherium-backend/internal/mediajobs/domain"
	"github.com/aetherium-labs/aetherium-backend/internal/mediajobs/repository"
	"github.com/aetherium-labs/aetherium-backend/internal/storage/blob"
)

// VideoGenerator runs the video flow.
type VideoGenerator interface {
	Validate(v any) error
	GenerateVideo(ctx context.Context, in flows.VideoInput, progress flows.Progress) (*flows.VideoOutput, error)
}

// JobService runs media generations in the background and tracks them in Redis.
type JobService struct {
	repo   *repository.JobRepository
	gen    VideoGenerator
	blobs  blob.Store
	budget time.Duration
	now    func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewJobService creates a service. budget is the longest a job may stay
// pending or running before the janitor expires it.
func NewJobService(repo *repository.JobRepository, gen VideoGenerator, blobs blob.Store, budget time.Duration) *JobService {
	return &JobService{
		repo:    repo,
		gen:     gen,
		blobs:   blobs,
		budget:  budget,
		now:     time.Now,
		cancels: make(map[string]context.CancelFunc),
	}
}

// StartVideo validates the request, records a pending job and starts the flow.
// The job outlives the caller's request; it stops on Cancel or Shutdown.
func (s *JobService) StartVideo(ctx context.Context, userID string, in flows.VideoInput) (*domain.Job, error) {
	if in.DurationSeconds == 0 {
		in.DurationSeconds = 5
	}
	if in.AspectRatio == "" {
		in.AspectRatio = "16:9"
	}
	if err := s.gen.Validate(in); err != nil {
		return nil, err
	}

	job := &domain.Job{
		UserID:          userID,
		Kind:            domain.KindVideo,
		Status:          domain.StatusPending,
		Prompt:          in.Prompt,
		DurationSeconds: in.DurationSeconds,
		AspectRatio:     in.AspectRatio,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	jobCtx, cancel := context.WithCancel(logging.WithRequestID(context.Background(), logging.RequestID(ctx)))
	s.mu.Lock()
	s.cancels[job.JobID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.forget(job.JobID)
		s.run(jobCtx, *job, in)
	}()

	return job, nil
}

func (s *JobService) forget(jobID string) {
	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	delete(s.cancels, jobID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// writeCtx detaches job bookkeeping from the job's own cancellation.
func writeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func (s *JobService) run(ctx context.Context, job domain.Job, in flows.VideoInput) {
	log := logging.FromContext(ctx)

	wctx, done := writeCtx()
	_, err := s.repo.Mutate(wctx, job.JobID, func(j *domain.Job) error {
		if domain.IsTerminal(j.Status) {
			return domain.ErrJobFinished
		}
		j.Status = domain.StatusRunning
		return nil
	})
	done()
	if err != nil {
		log.LogWarnf("media_job", "job %s not started: %v", job.JobID, err)
		return
	}

	out, genErr := s.gen.GenerateVideo(ctx, in, func(attempt int) {
		wctx, done := writeCtx()
		defer done()
		_, err := s.repo.Mutate(wctx, job.JobID, func(j *domain.Job) error {
			if domain.IsTerminal(j.Status) {
				return domain.ErrJobFinished
			}
			j.Attempts = attempt
			return nil
		})
		if err != nil && !errors.Is(err, domain.ErrJobFinished) {
			log.LogWarnf("media_job", "progress of job %s not recorded: %v", job.JobID, err)
		}
	})

	var url, contentType string
	if genErr == nil {
		contentType = out.MIMEType
		path := fmt.Sprintf("users/%s/media_jobs/%s.%s", job.UserID, job.JobID, media.ExtensionFor(contentType))
		uctx, done := writeCtx()
		url, genErr = s.blobs.Put(uctx, path, out.Data, contentType)
		done()
	}

	wctx, done = writeCtx()
	defer done()
	_, err = s.repo.Mutate(wctx, job.JobID, func(j *domain.Job) error {
		if domain.IsTerminal(j.Status) {
			// cancelled or expired meanwhile; keep that outcome
			return domain.ErrJobFinished
		}
		now := s.now().UTC()
		switch {
		case genErr == nil:
			j.ResultURL = url
			j.ContentType = contentType
			return j.Finish(domain.StatusCompleted, now)
		case errors.Is(genErr, context.Canceled):
			return j.Finish(domain.StatusCancelled, now)
		case errors.Is(genErr, flows.ErrPollExhausted):
			j.Error = genErr.Error()
			return j.Finish(domain.StatusExpired, now)
		default:
			j.Error = genErr.Error()
			return j.Finish(domain.StatusFailed, now)
		}
	})
	switch {
	case err == nil:
		log.LogInfof("media_job", "job %s finished", job.JobID)
	case errors.Is(err, domain.ErrJobFinished):
	default:
		log.LogErrorf("media_job", "final state of job %s not recorded: %v", job.JobID, err)
	}
}

// Get returns a job owned by userID.
func (s *JobService) Get(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (s *JobService) List(ctx context.Context, userID string) ([]domain.Job, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Cancel stops an in-flight job. Jobs running on another instance are marked
// cancelled and their runner discards its result.
func (s *JobService) Cancel(ctx context.Context, userID, jobID string) (*domain.Job, error) {
	job, err := s.repo.Mutate(ctx, jobID, func(j *domain.Job) error {
		if j.UserID != userID {
			return domain.ErrJobNotFound
		}
		if domain.IsTerminal(j.Status) {
			return domain.ErrJobFinished
		}
		return j.Finish(domain.StatusCancelled, s.now().UTC())
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return job, nil
}

// ExpireStale marks jobs pending or running longer than the budget as expired.
func (s *JobService) ExpireStale(ctx context.Context) (int, error) {
	jobs, err := s.repo.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.budget)
	n := 0
	for _, job := range jobs {
		if domain.IsTerminal(job.Status) || job.CreatedAt.After(cutoff) {
			continue
		}
		_, err := s.repo.Mutate(ctx, job.JobID, func(j *domain.Job) error {
			if domain.IsTerminal(j.Status) {
				return domain.ErrJobFinished
			}
			j.Error = "job exceeded its time budget"
			return j.Finish(domain.StatusExpired, s.now().UTC())
		})
		if errors.Is(err, domain.ErrJobFinished) || errors.Is(err, domain.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++

		s.mu.Lock()
		cancel, ok := s.cancels[job.JobID]
		s.mu.Unlock()
		if ok {
			cancel()
		}
	}
	return n, nil
}

// Shutdown cancels every running job and waits for the runners to record it.
func (s *JobService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
