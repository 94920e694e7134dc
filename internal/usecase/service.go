package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"nhp/internal/domain"
	"nhp/internal/logger"
	"nhp/internal/port"
)

const (
	noValidFilesMessage = "No valid PDF files to process."
	notReadyMessage     = "Knowledge base is not initialized. Upload monograph documents first."
)

// Service is the surface offered to transports: the CLI and any HTTP layer.
type Service struct {
	store    port.KnowledgeStore
	queue    *IngestQueue
	state    *KnowledgeBaseState
	analyzer *AnalyzeUseCase
	cache    port.ClassificationCache
	warnings []error

	requireKnowledgeBase bool
}

type ServiceOption func(*Service)

// WithConfigWarnings attaches startup configuration problems reported by ConfigWarnings.
func WithConfigWarnings(errs ...error) ServiceOption {
	return func(s *Service) { s.warnings = append(s.warnings, errs...) }
}

// WithRequireKnowledgeBase makes Analyze fail while no monograph is loaded.
func WithRequireKnowledgeBase(require bool) ServiceOption {
	return func(s *Service) { s.requireKnowledgeBase = require }
}

func NewService(
	store port.KnowledgeStore,
	queue *IngestQueue,
	state *KnowledgeBaseState,
	analyzer *AnalyzeUseCase,
	resultCache port.ClassificationCache,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		store:                store,
		queue:                queue,
		state:                state,
		analyzer:             analyzer,
		cache:                resultCache,
		requireKnowledgeBase: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	// New monographs can change any cached decision
	if resultCache != nil {
		queue.OnDone(func(o domain.JobOutcome) {
			if o.Status == domain.JobSucceeded {
				_ = resultCache.Clear(context.Background())
			}
		})
	}
	return s
}

// UploadMonographs validates files and queues them for background ingestion.
func (s *Service) UploadMonographs(ctx context.Context, files []domain.UploadedFile) (domain.Ack, error) {
	log := logger.FromContext(ctx)

	var valid []domain.UploadedFile
	for _, f := range files {
		if !strings.EqualFold(filepath.Ext(f.Name), ".pdf") || len(f.Data) == 0 {
			log.Warn("skipping upload", "file", f.Name, "reason", "not a non-empty .pdf file")
			continue
		}
		valid = append(valid, f)
	}
	if len(valid) == 0 {
		return domain.Ack{Accepted: false, Message: noValidFilesMessage}, domain.ErrNoFiles
	}

	ack := domain.Ack{Accepted: true}
	for _, f := range valid {
		id, err := s.queue.Submit(f)
		if err != nil {
			if len(ack.JobIDs) == 0 {
				return domain.Ack{Message: fmt.Sprintf("Could not queue %s: %v.", f.Name, err)}, err
			}
			log.Warn("upload partially queued", "file", f.Name, "error", err)
			break
		}
		ack.JobIDs = append(ack.JobIDs, id)
	}
	ack.Message = fmt.Sprintf("Accepted %d files. The knowledge base will be updated in the background.", len(ack.JobIDs))
	return ack, nil
}

// Analyze classifies the ingredients of each product document.
func (s *Service) Analyze(ctx context.Context, files []domain.UploadedFile) ([]domain.AnalysisReport, error) {
	if len(files) == 0 {
		return nil, domain.ErrNoFiles
	}
	if s.requireKnowledgeBase {
		n, err := s.store.CountDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read knowledge base: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%s: %w", notReadyMessage, domain.ErrNotInitialized)
		}
	}
	return s.analyzer.Analyze(ctx, files)
}

// ResetKnowledgeBase discards every monograph and queued ingestion. It returns after the
// store is empty.
func (s *Service) ResetKnowledgeBase(ctx context.Context) error {
	log := logger.FromContext(ctx)

	// Invalidate queued jobs before the store bumps its generation
	s.queue.Invalidate()
	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset knowledge base: %w", err)
	}
	s.state.ClearError()

	if s.cache != nil {
		if err := s.cache.Clear(ctx); err != nil {
			log.Warn("failed to clear classification cache", "error", err)
		}
	}
	log.Info("knowledge base reset")
	return nil
}

func (s *Service) KnowledgeBaseStatus(ctx context.Context) domain.KnowledgeBaseStatus {
	pending, lastErr, jobs := s.state.Snapshot()
	status := domain.KnowledgeBaseStatus{
		Pending:   pending,
		LastError: lastErr,
		Jobs:      jobs,
	}

	n, err := s.store.CountDocuments(ctx)
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	status.DocumentsLoaded = n
	status.Ready = n > 0
	return status
}

// WaitForIngestion blocks until queued monographs are processed.
func (s *Service) WaitForIngestion(ctx context.Context) error {
	return s.queue.Wait(ctx)
}

// RemoveMonograph deletes one source document from the knowledge base.
func (s *Service) RemoveMonograph(ctx context.Context, source string) error {
	if err := s.store.DeleteDocument(ctx, source); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("monograph %q: %w", source, err)
		}
		return fmt.Errorf("failed to remove %s: %w", source, err)
	}
	if s.cache != nil {
		_ = s.cache.Clear(ctx)
	}
	return nil
}

// ConfigWarnings returns configuration problems found at startup.
func (s *Service) ConfigWarnings() []error {
	return append([]error(nil), s.warnings...)
}
