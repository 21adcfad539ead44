package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"quillpost/internal/auth"
	"quillpost/internal/domain"
	"quillpost/internal/repository/sqldb"
)

type countingNotifier struct {
	n atomic.Int32
}

func (c *countingNotifier) Notify() { c.n.Add(1) }

type fixture struct {
	store    *sqldb.Store
	auth     *auth.Authenticator
	users    UserService
	posts    PostService
	notifier *countingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, dialect, err := sqldb.Open(ctx, filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = sqldb.Migrate(ctx, db, dialect)
	require.NoError(t, err)
	store := sqldb.NewStore(db, dialect)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tokenCfg := auth.TokenConfig{Secret: []byte("service-secret"), Algorithm: "HS256", TTL: 30 * time.Minute}
	hasher, err := auth.NewHasher(auth.HasherConfig{Cost: bcrypt.MinCost})
	require.NoError(t, err)
	issuer, err := auth.NewIssuer(tokenCfg)
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(tokenCfg)
	require.NoError(t, err)
	authenticator := auth.NewAuthenticator(hasher, issuer, auth.NewResolver(verifier, store.Users(), logger))

	notifier := &countingNotifier{}
	return &fixture{
		store:    store,
		auth:     authenticator,
		users:    NewUserService(store.Users(), authenticator, logger),
		posts:    NewPostService(store, notifier, logger),
		notifier: notifier,
	}
}

func (f *fixture) register(t *testing.T, email string) *domain.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), Credentials{Email: email, Password: "password123"})
	require.NoError(t, err)
	return user
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	user, err := f.users.Register(ctx, Credentials{Email: "  Alice@Example.com ", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsSuperuser)

	stored, err := f.store.Users().GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"))

	session, err := f.users.Login(ctx, Credentials{Email: "ALICE@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, session.AccessToken)
	assert.Equal(t, 30*time.Minute, session.ExpiresIn)
	assert.Equal(t, user.ID, session.User.ID)

	principal, err := f.auth.AuthenticateRequest(ctx, "Bearer "+session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.ID)
	assert.Empty(t, principal.PasswordHash)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "dup@example.com")

	_, err := f.users.Register(ctx, Credentials{Email: "DUP@example.com", Password: "password456"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name  string
		creds Credentials
		field string
	}{
		{name: "bad email", creds: Credentials{Email: "not-an-email", Password: "password123"}, field: "email"},
		{name: "missing email", creds: Credentials{Password: "password123"}, field: "email"},
		{name: "short password", creds: Credentials{Email: "a@example.com", Password: "short"}, field: "password"},
		{name: "long password", creds: Credentials{Email: "a@example.com", Password: strings.Repeat("p", 73)}, field: "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.users.Register(ctx, tt.creds)
			var verrs validation.Errors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, verrs, tt.field)
		})
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "bob@example.com")

	for _, creds := range []Credentials{
		{Email: "bob@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "password123"},
		{Email: "", Password: "password123"},
		{Email: "bob@example.com", Password: ""},
	} {
		_, err := f.users.Login(ctx, creds)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "email %q", creds.Email)
	}
}

func TestEnsureSuperuserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	creds := Credentials{Email: "admin@example.com", Password: "admin-password"}

	first, err := f.users.EnsureSuperuser(ctx, creds)
	require.NoError(t, err)
	assert.True(t, first.IsSuperuser)

	second, err := f.users.EnsureSuperuser(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestEnsureSuperuserPromotesExistingAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	regular := f.register(t, "admin@example.com")
	require.False(t, regular.IsSuperuser)

	admin, err := f.users.EnsureSuperuser(ctx, Credentials{Email: "Admin@Example.com", Password: "admin-password"})
	require.NoError(t, err)
	assert.Equal(t, regular.ID, admin.ID)
	assert.True(t, admin.IsSuperuser)
	assert.Empty(t, admin.PasswordHash)

	stored, err := f.users.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsSuperuser)

	// the existing password is kept
	_, err = f.users.Login(ctx, Credentials{Email: "admin@example.com", Password: "password123"})
	assert.NoError(t, err)
}

func TestPostLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.register(t, "author@example.com")

	post, err := f.posts.Create(ctx, author, PostPayload{Title: "First", Slug: "first-post", Content: "v1"})
	require.NoError(t, err)
	assert.Equal(t, author.ID, post.UserID)

	_, err = f.posts.Create(ctx, author, PostPayload{Title: "Again", Slug: "first-post", Content: "x"})
	assert.ErrorIs(t, err, ErrSlugExists)

	updated, err := f.posts.Update(ctx, author, "first-post", PostPayload{Title: "First (edited)", Slug: "first-post", Content: "v2"})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Content)

	versions, err := f.posts.ListVersions(ctx, "first-post")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, "v1", versions[0].Content)

	restored, err := f.posts.RestoreVersion(ctx, author, "first-post", 1)
	require.NoError(t, err)
	assert.Equal(t, "First", restored.Title)
	assert.Equal(t, "v1", restored.Content)

	versions, err = f.posts.ListVersions(ctx, "first-post")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "v2", versions[0].Content)

	_, err = f.posts.RestoreVersion(ctx, author, "first-post", 42)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	require.NoError(t, f.posts.Delete(ctx, author, "first-post"))
	_, err = f.posts.Get(ctx, "first-post")
	assert.ErrorIs(t, err, ErrPostNotFound)
	assert.ErrorIs(t, f.posts.Delete(ctx, author, "first-post"), ErrPostNotFound)

	// create, update, restore, delete
	assert.Equal(t, int32(4), f.notifier.n.Load())
}

func TestPostUpdateSlugConflictRollsBackSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.register(t, "author@example.com")

	_, err := f.posts.Create(ctx, author, PostPayload{Title: "A", Slug: "a", Content: "a"})
	require.NoError(t, err)
	_, err = f.posts.Create(ctx, author, PostPayload{Title: "B", Slug: "b", Content: "b"})
	require.NoError(t, err)

	_, err = f.posts.Update(ctx, author, "b", PostPayload{Title: "B", Slug: "a", Content: "b"})
	assert.ErrorIs(t, err, ErrSlugExists)

	versions, err := f.posts.ListVersions(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestPostPermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.register(t, "author@example.com")
	other := f.register(t, "other@example.com")
	admin, err := f.users.EnsureSuperuser(ctx, Credentials{Email: "admin@example.com", Password: "admin-password"})
	require.NoError(t, err)

	_, err = f.posts.Create(ctx, author, PostPayload{Title: "Mine", Slug: "mine", Content: "content"})
	require.NoError(t, err)

	payload := PostPayload{Title: "Hijacked", Slug: "mine", Content: "content"}
	_, err = f.posts.Update(ctx, other, "mine", payload)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, f.posts.Delete(ctx, other, "mine"), ErrForbidden)
	_, err = f.posts.AddTags(ctx, other, "mine", TagsPayload{Tags: []string{"x"}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.posts.Update(ctx, admin, "mine", PostPayload{Title: "Moderated", Slug: "mine", Content: "content"})
	require.NoError(t, err)

	_, err = f.posts.Update(ctx, other, "missing", payload)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPostValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.register(t, "author@example.com")

	tests := []struct {
		name    string
		payload PostPayload
		field   string
	}{
		{name: "missing content", payload: PostPayload{Title: "T", Slug: "t"}, field: "content"},
		{name: "missing title", payload: PostPayload{Slug: "t", Content: "c"}, field: "title"},
		{name: "bad slug", payload: PostPayload{Title: "T", Slug: "not a slug!", Content: "c"}, field: "slug"},
		{name: "trailing hyphen", payload: PostPayload{Title: "T", Slug: "slug-", Content: "c"}, field: "slug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.posts.Create(ctx, author, tt.payload)
			var verrs validation.Errors
			require.ErrorAs(t, err, &verrs)
			assert.Contains(t, verrs, tt.field)
		})
	}
}

func TestTagsFilterPosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.register(t, "author@example.com")

	_, err := f.posts.Create(ctx, author, PostPayload{Title: "Go", Slug: "go-post", Content: "gophers"})
	require.NoError(t, err)
	_, err = f.posts.Create(ctx, author, PostPayload{Title: "Rust", Slug: "rust-post", Content: "crabs"})
	require.NoError(t, err)

	tagged, err := f.posts.AddTags(ctx, author, "go-post", TagsPayload{Tags: []string{" Go ", "backend", "go"}})
	require.NoError(t, err)
	require.Len(t, tagged.Tags, 2)
	assert.Equal(t, "backend", tagged.Tags[0].Name)
	assert.Equal(t, "go", tagged.Tags[1].Name)

	posts, err := f.posts.List(ctx, "go")
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "go-post", posts[0].Slug)

	for _, filter := range []string{"Go", " GO "} {
		posts, err := f.posts.List(ctx, filter)
		require.NoError(t, err)
		require.Len(t, posts, 1, "filter %q", filter)
		assert.Equal(t, "go-post", posts[0].Slug)
	}

	all, err := f.posts.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	tags, err := f.posts.ListTags(ctx)
	require.NoError(t, err)
	assert.Len(t, tags, 2)

	_, err = f.posts.AddTags(ctx, author, "go-post", TagsPayload{})
	var verrs validation.Errors
	assert.ErrorAs(t, err, &verrs)
}

func TestFeedRender(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	author := f.register(t, "author@example.com")

	for _, slug := range []string{"one", "two", "three"} {
		_, err := f.posts.Create(ctx, author, PostPayload{Title: "Post " + slug, Slug: slug, Content: "Body of " + slug})
		require.NoError(t, err)
	}

	feed := NewFeedService(f.store.Posts(), FeedConfig{
		Title:       "Quill",
		Link:        "https://blog.example.com/",
		Description: "Latest posts",
		Limit:       2,
	})
	rss, err := feed.Render(ctx)
	require.NoError(t, err)

	assert.Contains(t, rss, `<rss version="2.0"`)
	assert.Contains(t, rss, "<title>Quill</title>")
	assert.Contains(t, rss, "https://blog.example.com/posts/")
	assert.Equal(t, 2, strings.Count(rss, "<item>"))

	everything := NewFeedService(f.store.Posts(), FeedConfig{Title: "Quill", Link: "https://blog.example.com"})
	rss, err = everything.Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(rss, "<item>"))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "short", summarize("  short  ", 10))
	assert.Equal(t, "abc…", summarize("abcdef", 3))
}
