package workflow

import (
	"context"

	"bookforge/internal/logging"
	"bookforge/internal/store"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool     `json:"running"`
	LastError  string   `json:"last_error,omitempty"`
	ActiveBook string   `json:"active_book,omitempty"`
	Queued     []string `json:"queued"`
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, ActiveBook: m.activeBook}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	m.mu.RUnlock()

	queued, err := m.store.BooksWithGeneration(ctx, store.GenerationQueued)
	if err != nil {
		m.logger.Warn("failed to read generation queue", logging.Error(err))
	}
	summary.Queued = queued
	if summary.Queued == nil {
		summary.Queued = []string{}
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setActiveBook(id string) {
	m.mu.Lock()
	m.activeBook = id
	m.mu.Unlock()
}
