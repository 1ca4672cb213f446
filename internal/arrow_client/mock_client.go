package arrow_client

import (
	"context"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
)

// MockFlightClient is an in-memory Uploader for testing
type MockFlightClient struct {
	mu        sync.RWMutex
	connected bool
	records   []arrow.Record
	failWith  error
}

// NewMockFlightClient creates a new mock client
func NewMockFlightClient() *MockFlightClient {
	return &MockFlightClient{}
}

// Connect simulates connection
func (m *MockFlightClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Close simulates disconnection
func (m *MockFlightClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// FailWith makes every later Upload return err
func (m *MockFlightClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Upload retains the record in memory
func (m *MockFlightClient) Upload(ctx context.Context, rec arrow.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failWith != nil {
		return m.failWith
	}
	rec.Retain()
	m.records = append(m.records, rec)
	return nil
}

// Rows decodes every uploaded record
func (m *MockFlightClient) Rows() ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for _, rec := range m.records {
		rows, err := DecodeRows(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// Batches returns the number of uploaded records
func (m *MockFlightClient) Batches() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Reset releases and clears all stored records
func (m *MockFlightClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		rec.Release()
	}
	m.records = nil
}
