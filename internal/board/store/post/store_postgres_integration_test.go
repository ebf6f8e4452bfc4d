//go:build integration

package post_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"corkboard/internal/board/models"
	"corkboard/internal/board/store/post"
	"corkboard/internal/board/store/user"
	pgplatform "corkboard/internal/platform/postgres"
	"corkboard/pkg/platform/sentinel"
	"corkboard/pkg/testutil/containers"
)

// PostgresStoreSuite covers both board stores since posts reference users.
type PostgresStoreSuite struct {
	suite.Suite
	db    *sql.DB
	users *user.PostgresUserStore
	posts *post.PostgresPostStore
	tx    *pgplatform.TxRunner
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	pg := containers.NewPostgresContainer(s.T())
	s.db = pg.DB
	s.Require().NoError(pgplatform.Migrate(s.ctx, s.db))
	s.users = user.NewPostgresUserStore(s.db)
	s.posts = post.NewPostgresPostStore(s.db)
	s.tx = pgplatform.NewTxRunner(s.db)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.ExecContext(s.ctx, `TRUNCATE posts, users CASCADE`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) createUser(email string) *models.User {
	u, err := models.NewUser(uuid.New(), email, "Test", "hash", time.Now().UTC().Truncate(time.Millisecond))
	s.Require().NoError(err)
	s.Require().NoError(s.users.Create(s.ctx, u))
	return u
}

func (s *PostgresStoreSuite) createPost(author uuid.UUID, title string, at time.Time) *models.Post {
	p, err := models.NewPost(uuid.New(), author, title, "body", at)
	s.Require().NoError(err)
	s.Require().NoError(s.posts.Create(s.ctx, p))
	return p
}

func (s *PostgresStoreSuite) TestUsers() {
	u := s.createUser("alice@example.com")

	got, err := s.users.FindByEmail(s.ctx, "alice@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, got.ID)

	dup, _ := models.NewUser(uuid.New(), "alice@example.com", "Other", "hash", time.Now())
	s.ErrorIs(s.users.Create(s.ctx, dup), sentinel.ErrConflict)

	u.EmailVerified = true
	s.Require().NoError(s.users.Update(s.ctx, u))
	got, _ = s.users.FindByID(s.ctx, u.ID)
	s.True(got.EmailVerified)

	_, err = s.users.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPosts() {
	u := s.createUser("alice@example.com")
	base := time.Now().UTC().Truncate(time.Millisecond)
	s.createPost(u.ID, "first", base.Add(-time.Minute))
	second := s.createPost(u.ID, "second", base)

	page, total, err := s.posts.List(s.ctx, 10, 0)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.Equal("second", page[0].Title)

	second.Title = "edited"
	s.Require().NoError(s.posts.Update(s.ctx, second))
	got, _ := s.posts.FindByID(s.ctx, second.ID)
	s.Equal("edited", got.Title)

	s.Require().NoError(s.posts.Delete(s.ctx, second.ID))
	s.ErrorIs(s.posts.Delete(s.ctx, second.ID), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAccountDeletionInTx() {
	u := s.createUser("alice@example.com")
	s.createPost(u.ID, "one", time.Now().UTC())
	s.createPost(u.ID, "two", time.Now().UTC())

	errBoom := errors.New("boom")
	err := s.tx.RunInTx(s.ctx, func(ctx context.Context) error {
		n, err := s.posts.DeleteByAuthor(ctx, u.ID)
		s.Require().NoError(err)
		s.Equal(2, n)
		return errBoom
	})
	s.ErrorIs(err, errBoom)

	_, total, _ := s.posts.List(s.ctx, 10, 0)
	s.Equal(2, total, "rolled back")

	s.Require().NoError(s.tx.RunInTx(s.ctx, func(ctx context.Context) error {
		if _, err := s.posts.DeleteByAuthor(ctx, u.ID); err != nil {
			return err
		}
		return s.users.Delete(ctx, u.ID)
	}))
	_, total, _ = s.posts.List(s.ctx, 10, 0)
	s.Equal(0, total)
}
