package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/packhub/boxflow/internal/domain"
)

// MockQueueRepository is a hand-written, in-memory implementation of
// QueueRepository used in unit tests. No mock-generation library needed.
type MockQueueRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.QueueItem

	// Optional error overrides — set in tests to simulate failure paths.
	CreateErr        error
	ClaimErr         error
	RecordAttemptErr error
}

func NewMockQueueRepository() *MockQueueRepository {
	return &MockQueueRepository{items: make(map[string]*domain.QueueItem)}
}

func (m *MockQueueRepository) Create(_ context.Context, item *domain.QueueItem) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *item
	m.items[item.ID] = &clone
	return nil
}

func (m *MockQueueRepository) GetByID(_ context.Context, id string) (*domain.QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (m *MockQueueRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.QueueItem, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.QueueItem
	for _, item := range m.items {
		if f.Status != nil && item.Status != *f.Status {
			continue
		}
		clone := *item
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Priority.After(result[j].Priority) })
	return result, len(result), nil
}

func (m *MockQueueRepository) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.Status]int)
	for _, item := range m.items {
		counts[item.Status]++
	}
	return counts, nil
}

func (m *MockQueueRepository) ClaimNext(_ context.Context, now time.Time) (*domain.QueueItem, error) {
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var oldest *domain.QueueItem
	for _, item := range m.items {
		if item.Status != domain.StatusPending {
			continue
		}
		if item.RetryAfter != nil && item.RetryAfter.After(now) {
			continue
		}
		if oldest == nil || item.Priority.Before(oldest.Priority) {
			oldest = item
		}
	}
	if oldest == nil {
		return nil, nil
	}

	oldest.Status = domain.StatusProcessing
	started := now
	oldest.StartedAt = &started
	oldest.RetryAfter = nil
	clone := *oldest
	return &clone, nil
}

func (m *MockQueueRepository) RecordAttempt(_ context.Context, id string) (int, error) {
	if m.RecordAttemptErr != nil {
		return 0, m.RecordAttemptErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	item.Attempts++
	return item.Attempts, nil
}

func (m *MockQueueRepository) MarkCompleted(_ context.Context, id string, result *domain.AssignmentResult, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.Status = domain.StatusCompleted
		item.Result = result
		item.CompletedAt = &completedAt
		item.LastError = nil
	}
	return nil
}

func (m *MockQueueRepository) ScheduleRetry(_ context.Context, id string, errMsg string, retryAfter time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.Status = domain.StatusPending
		item.LastError = &errMsg
		item.RetryAfter = &retryAfter
		item.StartedAt = nil
	}
	return nil
}

func (m *MockQueueRepository) MarkFailed(_ context.Context, id string, errMsg string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if item, ok := m.items[id]; ok {
		item.Status = domain.StatusFailed
		item.LastError = &errMsg
		item.CompletedAt = &completedAt
		item.RetryAfter = nil
	}
	return nil
}

func (m *MockQueueRepository) FindStuck(_ context.Context, cutoff time.Time) ([]*domain.QueueItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.QueueItem
	for _, item := range m.items {
		if item.Status != domain.StatusProcessing {
			continue
		}
		if item.StartedAt == nil || item.StartedAt.Before(cutoff) {
			clone := *item
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockQueueRepository) ResetStuck(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reset := 0
	for _, id := range ids {
		item, ok := m.items[id]
		if !ok || item.Status != domain.StatusProcessing {
			continue
		}
		item.Status = domain.StatusPending
		item.StartedAt = nil
		item.RetryAfter = nil
		reset++
	}
	return reset, nil
}
