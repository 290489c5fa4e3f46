package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aetherium-labs/aetherium-backend/internal/mediajobs/domain"
)

const (
	jobKeyPrefix          = "aeth:job:"        // aeth:job:{job_id}
	userJobSetPrefix      = "aeth:user:"       // aeth:user:{user_id}:jobs
	activeJobSetKey       = "aeth:jobs:active" // ids of jobs not yet terminal
	jobEventChannelPrefix = "aeth:job-events:" // aeth:job-events:{job_id}
	jobTTL                = 24 * time.Hour

	maxMutateAttempts = 5
)

// JobRepository stores media jobs in Redis.
type JobRepository struct {
	client *redis.Client
	now    func() time.Time
}

func NewJobRepository(client *redis.Client) *JobRepository {
	return &JobRepository{client: client, now: time.Now}
}

// Create stores a new job and indexes it under its user and the active set.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	now := r.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	userSet := r.userJobSetKey(job.UserID)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.jobKey(job.JobID), data, jobTTL)
	pipe.SAdd(ctx, userSet, job.JobID)
	pipe.Expire(ctx, userSet, jobTTL)
	if !domain.IsTerminal(job.Status) {
		pipe.SAdd(ctx, activeJobSetKey, job.JobID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *JobRepository) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	return r.get(ctx, r.client, jobID)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *JobRepository) get(ctx context.Context, c getter, jobID string) (*domain.Job, error) {
	data, err := c.Get(ctx, r.jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Mutate applies fn to the stored job inside a WATCH transaction, so
// concurrent writers from other instances never overwrite each other.
// fn may return an error to abort without writing.
func (r *JobRepository) Mutate(ctx context.Context, jobID string, fn func(*domain.Job) error) (*domain.Job, error) {
	key := r.jobKey(jobID)
	var out *domain.Job

	txf := func(tx *redis.Tx) error {
		job, err := r.get(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		job.UpdatedAt = r.now().UTC()

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			if domain.IsTerminal(job.Status) {
				pipe.SRem(ctx, activeJobSetKey, job.JobID)
			}
			return nil
		})
		if err == nil {
			out = job
		}
		return err
	}

	for i := 0; i < maxMutateAttempts; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		r.publish(ctx, out)
		return out, nil
	}
	return nil, fmt.Errorf("failed to update job %s: too much contention", jobID)
}

func (r *JobRepository) publish(ctx context.Context, job *domain.Job) {
	if job == nil || job.Status == "" {
		return
	}
	if data, err := json.Marshal(job); err == nil {
		r.client.Publish(ctx, r.jobEventChannel(job.JobID), data)
	}
}

// Subscribe returns a pub/sub handle delivering every stored update of the job.
func (r *JobRepository) Subscribe(ctx context.Context, jobID string) *redis.PubSub {
	return r.client.Subscribe(ctx, r.jobEventChannel(jobID))
}

// ListByUser returns the user's jobs, newest first. Ids whose records
// expired are pruned from the index.
func (r *JobRepository) ListByUser(ctx context.Context, userID string) ([]domain.Job, error) {
	userSet := r.userJobSetKey(userID)
	ids, err := r.client.SMembers(ctx, userSet).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs for user: %w", err)
	}
	jobs, missing, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		r.client.SRem(ctx, userSet, toAny(missing)...)
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	return jobs, nil
}

// ListActive returns jobs that are still pending or running.
func (r *JobRepository) ListActive(ctx context.Context) ([]domain.Job, error) {
	ids, err := r.client.SMembers(ctx, activeJobSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active jobs: %w", err)
	}
	jobs, missing, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		r.client.SRem(ctx, activeJobSetKey, toAny(missing)...)
	}
	return jobs, nil
}

func (r *JobRepository) load(ctx context.Context, ids []string) (jobs []domain.Job, missing []string, err error) {
	jobs = make([]domain.Job, 0, len(ids))
	if len(ids) == 0 {
		return jobs, nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.jobKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var job domain.Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal job %s: %w", ids[i], err)
		}
		jobs = append(jobs, job)
	}
	return jobs, missing, nil
}

func (r *JobRepository) Delete(ctx context.Context, jobID string) error {
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.jobKey(jobID))
	pipe.SRem(ctx, r.userJobSetKey(job.UserID), jobID)
	pipe.SRem(ctx, activeJobSetKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func (r *JobRepository) jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

func (r *JobRepository) userJobSetKey(userID string) string {
	return fmt.Sprintf("%s%s:jobs", userJobSetPrefix, userID)
}

func (r *JobRepository) jobEventChannel(jobID string) string {
	return jobEventChannelPrefix + jobID
}
