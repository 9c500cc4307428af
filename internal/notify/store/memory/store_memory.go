package memory

import (
	"context"
	"sort"
	"sync"

	"shacore/internal/notify"
	id "shacore/pkg/domain"
	"shacore/pkg/pagination"
	"shacore/pkg/platform/sentinel"
)

type Store struct {
	mu            sync.RWMutex
	notifications map[id.NotificationID]notify.Notification
}

func New() *Store {
	return &Store{notifications: make(map[id.NotificationID]notify.Notification)}
}

func (s *Store) Create(_ context.Context, n *notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = *n
	return nil
}

func (s *Store) FindByID(_ context.Context, nid id.NotificationID) (*notify.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[nid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := n
	return &copied, nil
}

func (s *Store) Update(_ context.Context, n *notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.notifications[n.ID] = *n
	return nil
}

func (s *Store) ListByRecipient(_ context.Context, recipient string, params pagination.Params) (pagination.Page[notify.Notification], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []notify.Notification
	for _, n := range s.notifications {
		if n.Recipient == recipient {
			matched = append(matched, n)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return pagination.NewPage(matched, params), nil
}
