package materialize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"imageservice/internal/domain"
	"imageservice/internal/infra"
	"imageservice/internal/metrics"
	"imageservice/internal/storage"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 4
	maxImageBytes      = 64 << 20
)

// Options configures a Materializer.
type Options struct {
	Store       *storage.FileStore
	HTTPClient  *http.Client
	Timeout     time.Duration
	Concurrency int
	Logger      *infra.Logger
	Metrics     *metrics.Collector
}

// Materializer downloads vendor images into the artifact store.
type Materializer struct {
	store       *storage.FileStore
	client      *http.Client
	timeout     time.Duration
	concurrency int
	logger      *infra.Logger
	metrics     *metrics.Collector
	now         func() time.Time
	suffix      func() string
}

// New builds a Materializer. Store is required.
func New(opts Options) (*Materializer, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("materialize: store is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Materializer{
		store:       opts.Store,
		client:      client,
		timeout:     timeout,
		concurrency: concurrency,
		logger:      infra.OrNop(opts.Logger),
		metrics:     opts.Metrics,
		now:         time.Now,
		suffix:      shortID,
	}, nil
}

// FileName builds "<provider>_<YYYYmmdd_HHMMSS>_<index>_<suffix>.png".
func FileName(provider string, at time.Time, index int, suffix string) string {
	return fmt.Sprintf("%s_%s_%d_%s.png", provider, at.Format("20060102_150405"), index, suffix)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Materialize downloads every image that carries a URL, in parallel, and
// returns artifacts in vendor order. A failed download yields an artifact
// with an empty LocalPath; it never fails the batch. Images without a URL are
// skipped.
func (m *Materializer) Materialize(ctx context.Context, provider, jobID string, images []domain.RemoteImage) []domain.ImageArtifact {
	slots := make([]*domain.ImageArtifact, len(images))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, img := range images {
		if img.URL == "" {
			m.logger.Warn().
				Str("provider", provider).
				Str("job_id", jobID).
				Int("index", img.Index).
				Msg("image reported without url, skipped")
			continue
		}
		art := &domain.ImageArtifact{
			Index:       img.Index,
			URL:         img.URL,
			Seed:        img.Seed,
			AuditStatus: img.AuditStatus,
		}
		slots[i] = art
		g.Go(func() error {
			name := FileName(provider, m.now(), img.Index, m.suffix())
			path, err := m.fetch(ctx, provider, img.URL, name)
			m.metrics.ObserveDownload(provider, err == nil)
			if err != nil {
				m.logger.Error().
					Err(err).
					Str("provider", provider).
					Str("job_id", jobID).
					Int("index", img.Index).
					Str("url", img.URL).
					Msg("image download failed")
				return nil
			}
			art.LocalPath = path
			art.FileName = name
			m.logger.Info().
				Str("provider", provider).
				Str("job_id", jobID).
				Int("index", img.Index).
				Str("path", path).
				Msg("image downloaded")
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.ImageArtifact, 0, len(images))
	for _, art := range slots {
		if art != nil {
			out = append(out, *art)
		}
	}
	return out
}

func (m *Materializer) fetch(ctx context.Context, provider, imageURL, name string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return "", fmt.Errorf("materialize: build download request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("materialize: download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("materialize: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("materialize: read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return "", fmt.Errorf("materialize: image exceeds %d bytes", maxImageBytes)
	}
	return m.store.Write(ctx, storage.ProviderKey(provider, name), data)
}
