package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"quillpost/internal/storage"
)

const contentType = "application/rss+xml; charset=utf-8"

// Renderer produces the feed document.
type Renderer interface {
	Render(ctx context.Context) (string, error)
}

// Publisher keeps a copy of the feed in object storage up to date.
type Publisher interface {
	Start(ctx context.Context) error
	// Notify schedules a republish. It never blocks; bursts collapse into one upload.
	Notify()
	Shutdown()
}

type Config struct {
	Bucket   string
	Key      string
	Debounce time.Duration
	Timeout  time.Duration
	Logger   *logrus.Logger
}

type publisher struct {
	cfg      Config
	renderer Renderer
	storage  storage.Service

	pending chan struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewPublisher(cfg Config, renderer Renderer, storage storage.Service) Publisher {
	if cfg.Key == "" {
		cfg.Key = "rss.xml"
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	cfg.Key = strings.TrimLeft(cfg.Key, "/")
	return &publisher{
		cfg:      cfg,
		renderer: renderer,
		storage:  storage,
		pending:  make(chan struct{}, 1),
	}
}

// Start publishes once and then republishes after every burst of notifications.
func (p *publisher) Start(ctx context.Context) error {
	if p.cfg.Bucket == "" {
		return fmt.Errorf("feed bucket is required")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.Notify()
	p.wg.Add(1)
	go p.loop()

	p.cfg.Logger.Infof("feed publisher started, target: s3://%s/%s", p.cfg.Bucket, p.cfg.Key)
	return nil
}

func (p *publisher) Shutdown() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.cfg.Logger.Info("feed publisher stopped")
}

func (p *publisher) Notify() {
	select {
	case p.pending <- struct{}{}:
	default:
	}
}

func (p *publisher) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.pending:
		}

		timer := time.NewTimer(p.cfg.Debounce)
		select {
		case <-p.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		// notifications that arrived while waiting are covered by this run
		select {
		case <-p.pending:
		default:
		}

		if err := p.publish(); err != nil {
			p.cfg.Logger.WithError(err).Warn("publish feed failed")
		}
	}
}

func (p *publisher) publish() error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	rss, err := p.renderer.Render(ctx)
	if err != nil {
		return fmt.Errorf("render feed: %w", err)
	}

	location, err := p.storage.PutObject(ctx, storage.PutObjectInput{
		Bucket:       p.cfg.Bucket,
		Key:          p.cfg.Key,
		Body:         strings.NewReader(rss),
		ContentType:  contentType,
		CacheControl: "max-age=60",
	})
	if err != nil {
		return err
	}
	p.cfg.Logger.WithField("location", location).Debug("feed published")
	return nil
}

// NopPublisher is used when no bucket is configured.
type NopPublisher struct{}

func (NopPublisher) Start(context.Context) error { return nil }
func (NopPublisher) Notify()                     {}
func (NopPublisher) Shutdown()                   {}

var _ Publisher = NopPublisher{}
