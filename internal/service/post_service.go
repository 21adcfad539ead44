package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quillpost/internal/domain"
	"quillpost/internal/repository"
)

var (
	ErrPostNotFound    = errors.New("post does not exist")
	ErrSlugExists      = errors.New("slug already exists")
	ErrForbidden       = errors.New("not allowed to modify this post")
	ErrVersionNotFound = errors.New("post version does not exist")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// PostPayload is the create and update body.
type PostPayload struct {
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Content string `json:"content"`
}

func (p PostPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Slug, validation.Required, validation.Length(1, 200),
			validation.Match(slugPattern).Error("must be lower-case words separated by hyphens")),
		validation.Field(&p.Content, validation.Required),
	)
}

// TagsPayload is the body of the add-tags call.
type TagsPayload struct {
	Tags []string `json:"tags"`
}

func (p TagsPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Tags, validation.Required, validation.By(validTagNames)),
	)
}

func validTagNames(value interface{}) error {
	names, _ := value.([]string)
	for _, name := range names {
		if err := validation.Validate(name, validation.Required, validation.Length(1, 50)); err != nil {
			return fmt.Errorf("tag %q: %w", name, err)
		}
	}
	return nil
}

// Notifier is told whenever the set of published posts changes.
type Notifier interface {
	Notify()
}

type PostService interface {
	Create(ctx context.Context, actor *domain.User, payload PostPayload) (*domain.Post, error)
	List(ctx context.Context, tag string) ([]domain.Post, error)
	Get(ctx context.Context, slug string) (*domain.Post, error)
	Update(ctx context.Context, actor *domain.User, slug string, payload PostPayload) (*domain.Post, error)
	Delete(ctx context.Context, actor *domain.User, slug string) error
	AddTags(ctx context.Context, actor *domain.User, slug string, payload TagsPayload) (*domain.Post, error)
	ListTags(ctx context.Context) ([]domain.Tag, error)
	ListVersions(ctx context.Context, slug string) ([]domain.PostVersion, error)
	RestoreVersion(ctx context.Context, actor *domain.User, slug string, version int) (*domain.Post, error)
}

type postService struct {
	store    repository.Store
	notifier Notifier
	logger   logrus.FieldLogger
}

func NewPostService(store repository.Store, notifier Notifier, logger logrus.FieldLogger) PostService {
	if logger == nil {
		logger = logrus.New()
	}
	return &postService{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *postService) Create(ctx context.Context, actor *domain.User, payload PostPayload) (*domain.Post, error) {
	payload = payload.normalize()
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	post := &domain.Post{
		ID:      uuid.NewString(),
		UserID:  actor.ID,
		Title:   payload.Title,
		Slug:    payload.Slug,
		Content: payload.Content,
	}
	if err := s.store.Posts().Create(ctx, post); err != nil {
		return nil, mapPostError(err)
	}

	s.logger.WithFields(logrus.Fields{"slug": post.Slug, "user_id": actor.ID}).Info("post created")
	s.notify()
	return post, nil
}

func (s *postService) List(ctx context.Context, tag string) ([]domain.Post, error) {
	posts, err := s.store.Posts().List(ctx, normalizeTag(tag))
	if err != nil {
		return nil, err
	}
	for i := range posts {
		tags, err := s.store.Tags().ListByPost(ctx, posts[i].ID)
		if err != nil {
			return nil, err
		}
		posts[i].Tags = tags
	}
	return posts, nil
}

func (s *postService) Get(ctx context.Context, slug string) (*domain.Post, error) {
	return s.load(ctx, s.store, slug)
}

func (s *postService) Update(ctx context.Context, actor *domain.User, slug string, payload PostPayload) (*domain.Post, error) {
	payload = payload.normalize()
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var updated *domain.Post
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		post, err := s.editable(ctx, tx, actor, slug)
		if err != nil {
			return err
		}
		if err := snapshot(ctx, tx, post); err != nil {
			return err
		}

		post.Title = payload.Title
		post.Slug = payload.Slug
		post.Content = payload.Content
		if err := tx.Posts().Update(ctx, post); err != nil {
			return mapPostError(err)
		}
		updated = post
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"slug": updated.Slug, "user_id": actor.ID}).Info("post updated")
	s.notify()
	return updated, nil
}

func (s *postService) Delete(ctx context.Context, actor *domain.User, slug string) error {
	post, err := s.editable(ctx, s.store, actor, slug)
	if err != nil {
		return err
	}
	if err := s.store.Posts().Delete(ctx, post.ID); err != nil {
		return mapPostError(err)
	}

	s.logger.WithFields(logrus.Fields{"slug": slug, "user_id": actor.ID}).Info("post deleted")
	s.notify()
	return nil
}

func (s *postService) AddTags(ctx context.Context, actor *domain.User, slug string, payload TagsPayload) (*domain.Post, error) {
	for i, name := range payload.Tags {
		payload.Tags[i] = normalizeTag(name)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var tagged *domain.Post
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		post, err := s.editable(ctx, tx, actor, slug)
		if err != nil {
			return err
		}
		for _, name := range payload.Tags {
			tag, err := tx.Tags().Ensure(ctx, name)
			if err != nil {
				return err
			}
			if err := tx.Tags().Attach(ctx, post.ID, tag.ID); err != nil {
				return err
			}
		}
		tagged, err = s.load(ctx, tx, slug)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notify()
	return tagged, nil
}

func (s *postService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return s.store.Tags().List(ctx)
}

func (s *postService) ListVersions(ctx context.Context, slug string) ([]domain.PostVersion, error) {
	post, err := s.load(ctx, s.store, slug)
	if err != nil {
		return nil, err
	}
	return s.store.Versions().ListByPost(ctx, post.ID)
}

func (s *postService) RestoreVersion(ctx context.Context, actor *domain.User, slug string, version int) (*domain.Post, error) {
	var restored *domain.Post
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		post, err := s.editable(ctx, tx, actor, slug)
		if err != nil {
			return err
		}
		target, err := tx.Versions().Get(ctx, post.ID, version)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrVersionNotFound
			}
			return err
		}
		if err := snapshot(ctx, tx, post); err != nil {
			return err
		}

		post.Title = target.Title
		post.Content = target.Content
		if err := tx.Posts().Update(ctx, post); err != nil {
			return mapPostError(err)
		}
		restored = post
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"slug": slug, "version": version}).Info("post restored")
	s.notify()
	return restored, nil
}

func (s *postService) load(ctx context.Context, store repository.Store, slug string) (*domain.Post, error) {
	post, err := store.Posts().GetBySlug(ctx, slug)
	if err != nil {
		return nil, mapPostError(err)
	}
	tags, err := store.Tags().ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Tags = tags
	return post, nil
}

// editable loads the post and checks that actor may change it.
// The post row stays locked for the rest of the transaction, so concurrent edits of one
// post take version numbers in turn.
func (s *postService) editable(ctx context.Context, store repository.Store, actor *domain.User, slug string) (*domain.Post, error) {
	post, err := store.Posts().LockBySlug(ctx, slug)
	if err != nil {
		return nil, mapPostError(err)
	}
	tags, err := store.Tags().ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Tags = tags
	if actor == nil || (post.UserID != actor.ID && !actor.IsSuperuser) {
		return nil, ErrForbidden
	}
	return post, nil
}

func (s *postService) notify() {
	if s.notifier != nil {
		s.notifier.Notify()
	}
}

func snapshot(ctx context.Context, tx repository.Store, post *domain.Post) error {
	err := tx.Versions().Create(ctx, &domain.PostVersion{
		ID:      uuid.NewString(),
		PostID:  post.ID,
		Title:   post.Title,
		Content: post.Content,
	})
	if err != nil {
		return fmt.Errorf("snapshot post %s: %w", post.Slug, err)
	}
	return nil
}

func mapPostError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrPostNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrSlugExists
	default:
		return err
	}
}

func (p PostPayload) normalize() PostPayload {
	p.Title = strings.TrimSpace(p.Title)
	p.Slug = strings.ToLower(strings.TrimSpace(p.Slug))
	return p
}

// normalizeTag is applied to stored names and to list filters alike.
func normalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
