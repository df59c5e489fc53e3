// Package actors reads contact profiles owned by the identity subsystem.
// The dispatch core never creates actors; it only resolves name, phone and
// address for assignment read paths.
package actors

import (
	"context"
	"errors"
	"sync"

	"github.com/example/sos-dispatch/internal/models"
)

var ErrNotFound = errors.New("actor not found")

type Directory interface {
	Get(ctx context.Context, id string) (models.Actor, error)
}

// Writer is implemented by directories that also accept profile writes. The
// service itself only needs it in tests and in the ingest consumer; the
// production source of truth is the identity service.
type Writer interface {
	Put(ctx context.Context, a models.Actor) error
}

type Memory struct {
	mu     sync.RWMutex
	actors map[string]models.Actor
}

func NewMemory() *Memory {
	return &Memory{actors: make(map[string]models.Actor)}
}

func (m *Memory) Put(_ context.Context, a models.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actors[a.ID] = a
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (models.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actors[id]
	if !ok {
		return models.Actor{}, ErrNotFound
	}
	return a, nil
}
