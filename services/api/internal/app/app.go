package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"learncircle/pkg/contentgen"
	"learncircle/pkg/events"
	"learncircle/pkg/queue"
	"learncircle/pkg/storage"
	"learncircle/pkg/store"
)

// Config holds the collaborators and settings of the application core.
type Config struct {
	Store     store.Store
	Sessions  store.SessionStore
	Jobs      queue.JobQueue
	Generator contentgen.Generator
	Objects   storage.ObjectStore
	Events    events.Publisher

	// AppURL prefixes invitation links.
	AppURL string
	// ContentTimeout bounds one course generation attempt.
	ContentTimeout time.Duration
	// ContentMaxAttempts must match the queue's MaxAttempts; the course is
	// marked failed only after the last attempt.
	ContentMaxAttempts int
	PDFURLExpiry       time.Duration
	MaxPDFBytes        int64
}

// App is the core application service: the authorization guard plus the
// course, circle and account workflows.
type App struct {
	store          store.Store
	sessions       store.SessionStore
	jobs           queue.JobQueue
	generator      contentgen.Generator
	objects        storage.ObjectStore
	events         events.Publisher
	appURL         string
	contentTimeout time.Duration
	maxAttempts    int
	pdfURLExpiry   time.Duration
	maxPDFBytes    int64
	now            func() time.Time
}

// New validates the injected collaborators and applies defaults.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store required")
	}
	if cfg.Jobs == nil {
		return nil, errors.New("job queue required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("content generator required")
	}
	appURL := strings.TrimRight(strings.TrimSpace(cfg.AppURL), "/")
	if appURL == "" {
		return nil, errors.New("app URL required")
	}
	if cfg.Events == nil {
		cfg.Events = events.NopPublisher{}
	}
	if cfg.ContentTimeout <= 0 {
		cfg.ContentTimeout = time.Hour
	}
	if cfg.ContentMaxAttempts <= 0 {
		cfg.ContentMaxAttempts = 1
	}
	if cfg.PDFURLExpiry <= 0 {
		cfg.PDFURLExpiry = 7 * 24 * time.Hour
	}
	if cfg.MaxPDFBytes <= 0 {
		cfg.MaxPDFBytes = 10 << 20
	}
	return &App{
		store:          cfg.Store,
		sessions:       cfg.Sessions,
		jobs:           cfg.Jobs,
		generator:      cfg.Generator,
		objects:        cfg.Objects,
		events:         cfg.Events,
		appURL:         appURL,
		contentTimeout: cfg.ContentTimeout,
		maxAttempts:    cfg.ContentMaxAttempts,
		pdfURLExpiry:   cfg.PDFURLExpiry,
		maxPDFBytes:    cfg.MaxPDFBytes,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

// StartWorkers runs content generation jobs until ctx is cancelled.
func (a *App) StartWorkers(ctx context.Context, concurrency int) {
	a.jobs.Start(ctx, concurrency, a.runContentJob)
}

// ContentTimeout bounds a single generator call.
func (a *App) ContentTimeout() time.Duration {
	return a.contentTimeout
}

// MaxPDFBytes is the upload limit enforced by UploadPDF.
func (a *App) MaxPDFBytes() int64 {
	return a.maxPDFBytes
}

// JWKS returns public signing keys when the session store supports it.
func (a *App) JWKS() []store.JWK {
	provider, ok := a.sessions.(store.JWKSProvider)
	if !ok {
		return nil
	}
	return provider.JWKS()
}
