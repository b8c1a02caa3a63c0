package repository

import (
	"context"
	"sync"

	"github.com/packhub/boxflow/internal/domain"
)

// MockReferenceRepository serves fixed reference data in unit tests.
type MockReferenceRepository struct {
	mu         sync.RWMutex
	Products   []domain.Product
	BoxClasses []domain.BoxClass

	ProductsErr   error
	BoxClassesErr error
	LoadCalls     int
}

func NewMockReferenceRepository(products []domain.Product, classes []domain.BoxClass) *MockReferenceRepository {
	return &MockReferenceRepository{Products: products, BoxClasses: classes}
}

func (m *MockReferenceRepository) LoadProducts(_ context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadCalls++
	if m.ProductsErr != nil {
		return nil, m.ProductsErr
	}
	return append([]domain.Product(nil), m.Products...), nil
}

func (m *MockReferenceRepository) LoadBoxClasses(_ context.Context) ([]domain.BoxClass, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.BoxClassesErr != nil {
		return nil, m.BoxClassesErr
	}
	return append([]domain.BoxClass(nil), m.BoxClasses...), nil
}

// SetError flips the reference source into a failing state mid-test.
func (m *MockReferenceRepository) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProductsErr = err
	m.BoxClassesErr = err
}

// MockAuditRepository collects audit entries for assertions.
type MockAuditRepository struct {
	mu      sync.Mutex
	Entries []*domain.AuditEntry

	RecordErr error
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Record(_ context.Context, e *domain.AuditEntry) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *e
	m.Entries = append(m.Entries, &clone)
	return nil
}

// Recorded returns a snapshot of entries captured so far.
func (m *MockAuditRepository) Recorded() []*domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.AuditEntry(nil), m.Entries...)
}
