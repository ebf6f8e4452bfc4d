// Package post stores board posts.
package post

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"corkboard/internal/board/models"
	"corkboard/pkg/platform/sentinel"
)

type InMemoryPostStore struct {
	mu    sync.RWMutex
	posts map[uuid.UUID]models.Post
}

func NewInMemoryPostStore() *InMemoryPostStore {
	return &InMemoryPostStore{posts: make(map[uuid.UUID]models.Post)}
}

func (s *InMemoryPostStore) Create(_ context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[p.ID]; ok {
		return fmt.Errorf("post %s: %w", p.ID, sentinel.ErrConflict)
	}
	s.posts[p.ID] = *p
	return nil
}

func (s *InMemoryPostStore) FindByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

// List returns one page of posts, newest first, and the total count.
func (s *InMemoryPostStore) List(_ context.Context, limit, offset int) ([]*models.Post, int, error) {
	s.mu.RLock()
	all := make([]*models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		all = append(all, &p)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID.String() > all[j].ID.String()
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*models.Post{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (s *InMemoryPostStore) Update(_ context.Context, p *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.posts[p.ID] = *p
	return nil
}

func (s *InMemoryPostStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

// DeleteByAuthor removes every post by authorID and returns how many.
func (s *InMemoryPostStore) DeleteByAuthor(_ context.Context, authorID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, p := range s.posts {
		if p.AuthorID == authorID {
			delete(s.posts, id)
			n++
		}
	}
	return n, nil
}
