package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "corkboard/pkg/platform/audit"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
	s.base = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) add(userID string, action audit.Action, success bool, offset time.Duration) {
	s.Require().NoError(s.store.Append(s.ctx, audit.Entry{
		ID:        action.String() + offset.String(),
		UserID:    userID,
		Action:    action,
		Success:   success,
		Resource:  "post",
		Timestamp: s.base.Add(offset),
	}))
}

func (s *InMemoryStoreSuite) TestSearch() {
	s.add("u1", audit.ActionLogin, true, 0)
	s.add("u1", audit.ActionPostCreate, true, time.Minute)
	s.add("u2", audit.ActionLoginFailed, false, 2*time.Minute)
	s.add("u1", audit.ActionLogout, true, 3*time.Minute)

	s.Run("newest first with total", func() {
		entries, total, err := s.store.Search(s.ctx, audit.Filter{UserID: "u1"})
		s.Require().NoError(err)
		s.Equal(3, total)
		s.Require().Len(entries, 3)
		s.Equal(audit.ActionLogout, entries[0].Action)
		s.Equal(audit.ActionLogin, entries[2].Action)
	})

	s.Run("pagination", func() {
		entries, total, err := s.store.Search(s.ctx, audit.Filter{Limit: 2, Offset: 2})
		s.Require().NoError(err)
		s.Equal(4, total)
		s.Require().Len(entries, 2)
		s.Equal(audit.ActionPostCreate, entries[0].Action)

		entries, _, err = s.store.Search(s.ctx, audit.Filter{Offset: 10})
		s.Require().NoError(err)
		s.Empty(entries)
	})

	s.Run("success and time range", func() {
		failed := false
		entries, total, err := s.store.Search(s.ctx, audit.Filter{Success: &failed})
		s.Require().NoError(err)
		s.Equal(1, total)
		s.Equal("u2", entries[0].UserID)

		_, total, err = s.store.Search(s.ctx, audit.Filter{
			Since: s.base.Add(time.Minute),
			Until: s.base.Add(3 * time.Minute),
		})
		s.Require().NoError(err)
		s.Equal(2, total)
	})
}

func (s *InMemoryStoreSuite) TestStats() {
	s.add("u1", audit.ActionLogin, true, 0)
	s.add("u1", audit.ActionLoginFailed, false, time.Hour)
	s.add("u2", audit.ActionRateLimitExceeded, false, 2*time.Hour)

	stats, err := s.store.Stats(s.ctx, "", s.base.Add(30*time.Minute))
	s.Require().NoError(err)
	s.Equal(2, stats.Total)
	s.Equal(0, stats.Successful)
	s.Equal(2, stats.Failed)
	s.Equal(2, stats.ByCategory[audit.CategorySecurity])

	stats, err = s.store.Stats(s.ctx, "u1", s.base)
	s.Require().NoError(err)
	s.Equal(2, stats.Total)
	s.Equal(1, stats.ByAction[audit.ActionLogin])
}

func (s *InMemoryStoreSuite) TestPurgeBefore() {
	s.add("u1", audit.ActionLogin, true, 0)
	s.add("u1", audit.ActionLogout, true, 48*time.Hour)

	n, err := s.store.PurgeBefore(s.ctx, s.base.Add(24*time.Hour))
	s.Require().NoError(err)
	s.EqualValues(1, n)
	s.Equal(1, s.store.Len())
}

func (s *InMemoryStoreSuite) TestCapDropsOldest() {
	store := NewInMemoryStoreWithCap(2)
	for i, action := range []audit.Action{audit.ActionLogin, audit.ActionPostCreate, audit.ActionLogout} {
		s.Require().NoError(store.Append(s.ctx, audit.Entry{Action: action, Timestamp: s.base.Add(time.Duration(i) * time.Second)}))
	}
	entries, total, err := store.Search(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Equal(audit.ActionLogout, entries[0].Action)
	s.Equal(audit.ActionPostCreate, entries[1].Action)
}

func (s *InMemoryStoreSuite) TestStoredEntriesAreIsolated() {
	md := map[string]any{"k": "v"}
	s.Require().NoError(s.store.Append(s.ctx, audit.Entry{Action: audit.ActionLogin, Metadata: md, Timestamp: s.base}))
	md["k"] = "changed"

	entries, _, err := s.store.Search(s.ctx, audit.Filter{})
	s.Require().NoError(err)
	s.Equal("v", entries[0].Metadata["k"])
}
