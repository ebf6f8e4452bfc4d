package post

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"corkboard/internal/board/models"
	"corkboard/pkg/platform/sentinel"
)

type InMemoryPostStoreSuite struct {
	suite.Suite
	store *InMemoryPostStore
	ctx   context.Context
	base  time.Time
}

func TestInMemoryPostStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryPostStoreSuite))
}

func (s *InMemoryPostStoreSuite) SetupTest() {
	s.store = NewInMemoryPostStore()
	s.ctx = context.Background()
	s.base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryPostStoreSuite) add(author uuid.UUID, n int) *models.Post {
	p, err := models.NewPost(uuid.New(), author, fmt.Sprintf("post %d", n), "body", s.base.Add(time.Duration(n)*time.Minute))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, p))
	return p
}

func (s *InMemoryPostStoreSuite) TestListNewestFirstWithPaging() {
	author := uuid.New()
	for i := range 5 {
		s.add(author, i)
	}

	page, total, err := s.store.List(s.ctx, 2, 0)
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(page, 2)
	s.Equal("post 4", page[0].Title)
	s.Equal("post 3", page[1].Title)

	page, _, _ = s.store.List(s.ctx, 2, 4)
	s.Require().Len(page, 1)
	s.Equal("post 0", page[0].Title)

	page, total, _ = s.store.List(s.ctx, 2, 10)
	s.Empty(page)
	s.Equal(5, total)
}

func (s *InMemoryPostStoreSuite) TestUpdateAndDelete() {
	p := s.add(uuid.New(), 1)
	p.Title = "edited"
	s.Require().NoError(s.store.Update(s.ctx, p))
	got, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("edited", got.Title)

	s.Require().NoError(s.store.Delete(s.ctx, p.ID))
	_, err = s.store.FindByID(s.ctx, p.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Update(s.ctx, p), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, p.ID), sentinel.ErrNotFound)
}

func (s *InMemoryPostStoreSuite) TestDeleteByAuthor() {
	alice, bob := uuid.New(), uuid.New()
	s.add(alice, 1)
	s.add(alice, 2)
	kept := s.add(bob, 3)

	n, err := s.store.DeleteByAuthor(s.ctx, alice)
	s.Require().NoError(err)
	s.Equal(2, n)

	_, total, _ := s.store.List(s.ctx, 10, 0)
	s.Equal(1, total)
	_, err = s.store.FindByID(s.ctx, kept.ID)
	s.NoError(err)
}
