//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	pgplatform "corkboard/internal/platform/postgres"
	audit "corkboard/pkg/platform/audit"
	auditpg "corkboard/pkg/platform/audit/store/postgres"
	txcontext "corkboard/pkg/platform/tx"
	"corkboard/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	store *auditpg.Store
	ctx   context.Context
	base  time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	pg := containers.NewPostgresContainer(s.T())
	s.db = pg.DB
	s.Require().NoError(pgplatform.Migrate(s.ctx, s.db))
	s.store = auditpg.New(s.db)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.ExecContext(s.ctx, `TRUNCATE audit_log`)
	s.Require().NoError(err)
	s.base = time.Now().UTC().Truncate(time.Millisecond)
}

func (s *PostgresStoreSuite) entry(userID string, action audit.Action, success bool, offset time.Duration) audit.Entry {
	return audit.Entry{
		ID:         uuid.NewString(),
		Category:   action.Category(),
		UserID:     userID,
		Action:     action,
		Resource:   "post",
		ResourceID: "p-1",
		IPAddress:  "203.0.113.9",
		UserAgent:  "test-agent",
		Success:    success,
		Metadata:   map[string]any{"bucket": "login"},
		Timestamp:  s.base.Add(offset),
	}
}

func (s *PostgresStoreSuite) TestAppendAndSearch() {
	s.Require().NoError(s.store.Append(s.ctx, s.entry("u1", audit.ActionPostCreate, true, -2*time.Minute)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry("u1", audit.ActionPostUpdate, true, -time.Minute)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry("", audit.ActionUnauthorizedAccess, false, 0)))

	entries, total, err := s.store.Search(s.ctx, audit.Filter{UserID: "u1"})
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Require().Len(entries, 2)
	s.Equal(audit.ActionPostUpdate, entries[0].Action)
	s.Equal("login", entries[0].Metadata["bucket"])

	failed := false
	entries, total, err = s.store.Search(s.ctx, audit.Filter{Success: &failed})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Empty(entries[0].UserID)

	entries, total, err = s.store.Search(s.ctx, audit.Filter{Resource: "post", ResourceID: "p-1", Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(entries, 1)
}

func (s *PostgresStoreSuite) TestStatsAndPurge() {
	s.Require().NoError(s.store.Append(s.ctx, s.entry("u1", audit.ActionLogin, true, -48*time.Hour)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry("u1", audit.ActionLoginFailed, false, -time.Hour)))
	s.Require().NoError(s.store.Append(s.ctx, s.entry("u2", audit.ActionLogin, true, 0)))

	stats, err := s.store.Stats(s.ctx, "", s.base.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Equal(2, stats.Total)
	s.Equal(1, stats.Failed)

	stats, err = s.store.Stats(s.ctx, "u1", s.base.Add(-72*time.Hour))
	s.Require().NoError(err)
	s.Equal(2, stats.Total)

	n, err := s.store.PurgeBefore(s.ctx, s.base.Add(-24*time.Hour))
	s.Require().NoError(err)
	s.EqualValues(1, n)
}

func (s *PostgresStoreSuite) TestAppendSurvivesRollback() {
	tx, err := s.db.BeginTx(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(txcontext.WithTx(s.ctx, tx), s.entry("u3", audit.ActionAccountDelete, true, 0)))
	s.Require().NoError(tx.Rollback())

	_, total, err := s.store.Search(s.ctx, audit.Filter{UserID: "u3"})
	s.Require().NoError(err)
	s.Equal(1, total)
}
