package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/partselect/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string][]byte
	getError error
	setError error
	getCalls int
	setCalls int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// MockSource is a mock implementation of domain.CatalogSource
type MockSource struct {
	name        string
	records     []domain.RawRecord
	quotes      []domain.PriceQuote
	searchError error
	priceError  error
	panicWith   interface{}
	delay       time.Duration

	mu          sync.Mutex
	searchCalls int
	priceCalls  int
	lastSearch  domain.SearchRequest
}

func NewMockSource(name string, records ...domain.RawRecord) *MockSource {
	return &MockSource{name: name, records: records}
}

func (m *MockSource) Name() string {
	return m.name
}

func (m *MockSource) Search(ctx context.Context, req domain.SearchRequest) ([]domain.RawRecord, error) {
	m.mu.Lock()
	m.searchCalls++
	m.lastSearch = req
	m.mu.Unlock()

	m.wait()
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if m.searchError != nil {
		return nil, m.searchError
	}
	return m.records, nil
}

func (m *MockSource) PriceAndStock(ctx context.Context, partNumber string) ([]domain.PriceQuote, error) {
	m.mu.Lock()
	m.priceCalls++
	m.mu.Unlock()

	m.wait()
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if m.priceError != nil {
		return nil, m.priceError
	}
	return m.quotes, nil
}

func (m *MockSource) calls() (search, price int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchCalls, m.priceCalls
}

// wait blocks for the configured delay without watching ctx, so tests can
// check that the caller enforces its own deadline
func (m *MockSource) wait() {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
}

// MockAlternatives is a mock implementation of domain.AlternativeLookup
type MockAlternatives struct {
	alternatives map[string][]string
	err          error
}

func (m *MockAlternatives) Alternatives(ctx context.Context, partNumber string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.alternatives[domain.CanonicalID(partNumber)], nil
}

// recordingObserver captures observer notifications
type recordingObserver struct {
	mu         sync.Mutex
	calls      []string
	selections []int
	selErrors  []error
}

func (o *recordingObserver) ObserveSourceCall(source, operation string, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.calls = append(o.calls, source+"/"+operation+"/"+status)
}

func (o *recordingObserver) ObserveSelection(candidates int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selections = append(o.selections, candidates)
	o.selErrors = append(o.selErrors, err)
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func record(pn, desc string, specs map[string]string) domain.RawRecord {
	return domain.RawRecord{
		PartNumber:   pn,
		Description:  desc,
		Manufacturer: "ACME",
		Category:     domain.CategoryPower,
		Specs:        domain.NewSpecs(specs),
	}
}

func mustRegistry(sources ...domain.CatalogSource) *SourceRegistry {
	r, err := NewSourceRegistry(sources...)
	if err != nil {
		panic(err)
	}
	return r
}
