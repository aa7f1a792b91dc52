package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"creatorfeed/internal/domain"
	"creatorfeed/internal/repository"
)

// memoryCreators is an in-memory CreatorRepository
type memoryCreators struct {
	mu        sync.Mutex
	creators  map[string]*domain.Creator
	listErr   error
	updateErr error
	updates   [][]domain.SubscriberUpdate
}

func newMemoryCreators(ids ...string) *memoryCreators {
	m := &memoryCreators{creators: map[string]*domain.Creator{}}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range ids {
		m.creators[id] = &domain.Creator{ChannelID: id, Name: "Creator " + id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
	}
	return m
}

func (m *memoryCreators) ListChannelIDs(ctx context.Context) ([]string, error) {
	list, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ChannelID)
	}
	return ids, nil
}

func (m *memoryCreators) CreatorExists(_ context.Context, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return false, m.listErr
	}
	_, ok := m.creators[channelID]
	return ok, nil
}

func (m *memoryCreators) List(context.Context) ([]*domain.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	list := make([]*domain.Creator, 0, len(m.creators))
	for _, c := range m.creators {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (m *memoryCreators) Get(_ context.Context, channelID string) (*domain.Creator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creators[channelID], nil
}

func (m *memoryCreators) Create(_ context.Context, creator *domain.Creator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creators[creator.ChannelID]; ok {
		return repository.ErrCreatorExists
	}
	m.creators[creator.ChannelID] = creator
	return nil
}

func (m *memoryCreators) Delete(_ context.Context, channelID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.creators[channelID]
	delete(m.creators, channelID)
	return ok, nil
}

func (m *memoryCreators) UpdateSubscribers(_ context.Context, updates []domain.SubscriberUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, updates)
	for _, u := range updates {
		if c, ok := m.creators[u.ChannelID]; ok {
			c.SubscribersCount = u.SubscribersCount
		}
	}
	return nil
}

// fakeChannels answers subscriber lookups from a fixed table
type fakeChannels struct {
	mu     sync.Mutex
	counts map[string]int64
	failOn map[string]bool
	calls  [][]string
}

func (f *fakeChannels) ChannelSubscribers(_ context.Context, ids []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), ids...))
	out := make(map[string]int64)
	for _, id := range ids {
		if f.failOn[id] {
			return nil, fmt.Errorf("quota exceeded")
		}
		if n, ok := f.counts[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}
