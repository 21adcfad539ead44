package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"quillpost/internal/repository"
)

const defaultFeedLimit = 20

type FeedConfig struct {
	Title       string
	Link        string
	Description string
	Limit       int
}

// FeedService renders the latest posts as RSS 2.0.
type FeedService interface {
	Render(ctx context.Context) (string, error)
}

type feedService struct {
	posts repository.PostRepository
	cfg   FeedConfig
}

func NewFeedService(posts repository.PostRepository, cfg FeedConfig) FeedService {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultFeedLimit
	}
	cfg.Link = strings.TrimRight(cfg.Link, "/")
	return &feedService{posts: posts, cfg: cfg}
}

func (s *feedService) Render(ctx context.Context) (string, error) {
	posts, err := s.posts.Recent(ctx, s.cfg.Limit)
	if err != nil {
		return "", err
	}

	feed := &feeds.Feed{
		Title:       s.cfg.Title,
		Link:        &feeds.Link{Href: s.cfg.Link + "/"},
		Description: s.cfg.Description,
		Created:     time.Now().UTC(),
	}
	if len(posts) > 0 {
		feed.Updated = posts[0].UpdatedAt
	}

	for _, post := range posts {
		link := fmt.Sprintf("%s/posts/%s", s.cfg.Link, post.Slug)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          link,
			Title:       post.Title,
			Link:        &feeds.Link{Href: link},
			Description: summarize(post.Content, 280),
			Content:     post.Content,
			Created:     post.CreatedAt,
			Updated:     post.UpdatedAt,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		return "", fmt.Errorf("render rss: %w", err)
	}
	return rss, nil
}

func summarize(content string, max int) string {
	runes := []rune(strings.TrimSpace(content))
	if len(runes) <= max {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}
