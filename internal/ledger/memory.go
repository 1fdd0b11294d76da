package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store. It backs tests and single-process
// deployments; the worker and API services share the Postgres store instead.
type MemoryStore struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	segments map[string][]SegmentResult
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]*Job),
		segments: make(map[string][]SegmentResult),
	}
}

func (s *MemoryStore) CreateJob(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *job
	s.jobs[job.JobID] = &clone
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, jobID string, mutate func(*Job) error) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}

	// Mutate a copy so a rejected transition leaves the record untouched.
	updated := *job
	if err := mutate(&updated); err != nil {
		return nil, err
	}

	s.jobs[jobID] = &updated
	clone := updated
	return &clone, nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, filter JobFilter) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && string(job.Status) != filter.Status {
			continue
		}
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].JobID > jobs[j].JobID
	})

	if filter.Cursor != nil {
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.CreatedAt.Before(filter.Cursor.CreatedAt) ||
				(job.CreatedAt.Equal(filter.Cursor.CreatedAt) && job.JobID < filter.Cursor.JobID) {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	if filter.PageSize > 0 && len(jobs) > filter.PageSize+1 {
		jobs = jobs[:filter.PageSize+1]
	}

	return jobs, nil
}

func (s *MemoryStore) DeleteJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return ErrJobNotFound
	}
	delete(s.jobs, jobID)
	return nil
}

func (s *MemoryStore) AppendSegmentResult(ctx context.Context, result *SegmentResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := s.segments[result.JobID]
	for i, existing := range results {
		// At-least-once dispatch may replay a segment; the last write wins.
		if existing.Index == result.Index {
			results[i] = *result
			return nil
		}
	}
	s.segments[result.JobID] = append(results, *result)
	return nil
}

func (s *MemoryStore) SegmentResults(ctx context.Context, jobID string) ([]SegmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]SegmentResult, len(s.segments[jobID]))
	copy(results, s.segments[jobID])
	sort.Slice(results, func(i, j int) bool {
		return results[i].Index < results[j].Index
	})
	return results, nil
}

func (s *MemoryStore) DeleteSegmentResults(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.segments, jobID)
	return nil
}
