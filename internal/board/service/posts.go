package service

import (
	"context"

	"github.com/google/uuid"

	"corkboard/internal/board/models"
	dErrors "corkboard/pkg/domain-errors"
	"corkboard/pkg/requestcontext"
)

// PostService manages posts. Only the author may change or remove a post.
type PostService struct {
	posts PostStore
	audit AuditRecorder
	cfg   *serviceConfig
}

func NewPostService(posts PostStore, auditor AuditRecorder, opts ...Option) *PostService {
	return &PostService{posts: posts, audit: auditor, cfg: newConfig(opts)}
}

// List returns a page of posts, newest first. limit is clamped to
// [1, MaxPageSize], defaulting to DefaultPageSize.
func (s *PostService) List(ctx context.Context, limit, offset int) ([]*models.Post, int, int, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)
	offset = max(offset, 0)
	posts, total, err := s.posts.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, 0, wrapStoreErr(err, "posts")
	}
	return posts, total, limit, nil
}

func (s *PostService) Get(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	p, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "post")
	}
	return p, nil
}

func (s *PostService) Create(ctx context.Context, req models.CreatePostRequest) (*models.Post, error) {
	authorID, err := parseUserID(requestcontext.UserID(ctx))
	if err != nil {
		return nil, err
	}
	p, err := models.NewPost(uuid.New(), authorID, req.Title, req.Body, requestcontext.Now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, wrapStoreErr(err, "post")
	}
	s.audit.LogPostCreated(ctx, authorID.String(), p.ID.String())
	return p, nil
}

func (s *PostService) Update(ctx context.Context, id uuid.UUID, req models.UpdatePostRequest) (*models.Post, error) {
	p, err := s.authorize(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := req.ChangedFields()
	if len(fields) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "nothing to update")
	}
	if err := p.Edit(req.Title, req.Body, requestcontext.Now(ctx)); err != nil {
		return nil, invariantToValidation(err)
	}
	if err := s.posts.Update(ctx, p); err != nil {
		return nil, wrapStoreErr(err, "post")
	}
	s.audit.LogPostUpdated(ctx, p.AuthorID.String(), p.ID.String(), fields)
	return p, nil
}

func (s *PostService) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.authorize(ctx, id)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, p.ID); err != nil {
		return wrapStoreErr(err, "post")
	}
	s.audit.LogPostDeleted(ctx, p.AuthorID.String(), p.ID.String())
	return nil
}

// authorize loads the post and checks the caller wrote it. Attempts on
// someone else's post are audited.
func (s *PostService) authorize(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	userID, err := parseUserID(requestcontext.UserID(ctx))
	if err != nil {
		return nil, err
	}
	p, err := s.posts.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "post")
	}
	if !p.IsAuthor(userID) {
		s.audit.LogUnauthorizedAccess(ctx, "post:"+p.ID.String(), "not_author")
		return nil, dErrors.New(dErrors.CodeForbidden, "only the author can modify this post")
	}
	return p, nil
}
