// Package markers remembers, on this device, which activity chats the user
// confirmed joining.
package markers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Marker is one remembered join.
type Marker struct {
	ActivityID string
	JoinedAt   time.Time
}

// Memory keeps markers for the lifetime of the process.
type Memory struct {
	mu     sync.RWMutex
	now    func() time.Time
	joined map[string]time.Time
}

// NewMemory constructs an empty in-memory marker set.
func NewMemory() *Memory {
	return &Memory{now: time.Now, joined: make(map[string]time.Time)}
}

func (m *Memory) HasJoined(_ context.Context, activityID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.joined[strings.TrimSpace(activityID)]
	return ok, nil
}

func (m *Memory) MarkJoined(_ context.Context, activityID string) error {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return ErrEmptyActivity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.joined[activityID]; !ok {
		m.joined[activityID] = m.now().UTC()
	}
	return nil
}

func (m *Memory) Forget(_ context.Context, activityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.joined, strings.TrimSpace(activityID))
	return nil
}

func (m *Memory) List(context.Context) ([]Marker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Marker, 0, len(m.joined))
	for id, at := range m.joined {
		out = append(out, Marker{ActivityID: id, JoinedAt: at})
	}
	sortMarkers(out)
	return out, nil
}

func sortMarkers(markers []Marker) {
	sort.Slice(markers, func(i, j int) bool {
		if markers[i].JoinedAt.Equal(markers[j].JoinedAt) {
			return markers[i].ActivityID < markers[j].ActivityID
		}
		return markers[i].JoinedAt.Before(markers[j].JoinedAt)
	})
}
