package usecase

import (
	"sync"

	"nhp/internal/domain"
)

const recentJobs = 50

// KnowledgeBaseState tracks ingestion progress for status reporting.
type KnowledgeBaseState struct {
	mu        sync.Mutex
	pending   int
	lastError string
	jobs      []domain.JobOutcome
}

func NewKnowledgeBaseState() *KnowledgeBaseState {
	return &KnowledgeBaseState{}
}

func (s *KnowledgeBaseState) Enqueued() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

// Finished records the outcome of a job that was counted by Enqueued.
func (s *KnowledgeBaseState) Finished(o domain.JobOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending > 0 {
		s.pending--
	}
	if o.Status == domain.JobFailed && o.Error != "" {
		s.lastError = o.Source + ": " + o.Error
	}
	s.jobs = append(s.jobs, o)
	if len(s.jobs) > recentJobs {
		s.jobs = append([]domain.JobOutcome(nil), s.jobs[len(s.jobs)-recentJobs:]...)
	}
}

// ClearError forgets the last failure, used after a reset.
func (s *KnowledgeBaseState) ClearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

func (s *KnowledgeBaseState) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Snapshot returns pending count, last error and recent outcomes, newest last.
func (s *KnowledgeBaseState) Snapshot() (int, string, []domain.JobOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.lastError, append([]domain.JobOutcome(nil), s.jobs...)
}
