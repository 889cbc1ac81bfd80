package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"boingbox-backend/internal/domain"
	appctx "boingbox-backend/pkg/context"
	"boingbox-backend/pkg/logger"
	"boingbox-backend/pkg/metrics"
)

// ErrProcessorStopped is returned by Enqueue after Stop
var ErrProcessorStopped = errors.New("media processor stopped")

// ProcessorConfig sizes the worker pool
type ProcessorConfig struct {
	Workers   int
	QueueSize int
	// Interval is an optional pause after each item
	Interval time.Duration
}

// handler derives renditions and metadata for one media type
type handler func(item domain.MediaWorkItem, m *domain.Media) error

// Processor runs media work items on a fixed pool of workers fed by a
// bounded queue.
type Processor struct {
	repo     MediaRepository
	queue    chan domain.MediaWorkItem
	workers  int
	interval time.Duration
	handlers map[domain.MediaType]handler
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stopped   chan struct{}
	wg        sync.WaitGroup
}

// NewProcessor creates a processor; nothing runs until Start
func NewProcessor(repo MediaRepository, cfg ProcessorConfig) *Processor {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	return &Processor{
		repo:     repo,
		queue:    make(chan domain.MediaWorkItem, cfg.QueueSize),
		workers:  cfg.Workers,
		interval: cfg.Interval,
		handlers: map[domain.MediaType]handler{
			domain.MediaTypeImage:    processImage,
			domain.MediaTypeVideo:    processVideo,
			domain.MediaTypeAudio:    processAudio,
			domain.MediaTypeDocument: processDocument,
		},
		now:     time.Now,
		stopped: make(chan struct{}),
	}
}

// Enqueue adds item to the queue, waiting for room until ctx is done
func (p *Processor) Enqueue(ctx context.Context, item domain.MediaWorkItem) error {
	select {
	case <-p.stopped:
		return ErrProcessorStopped
	default:
	}

	select {
	case p.queue <- item:
		metrics.MediaQueueDepth.Set(float64(len(p.queue)))
		return nil
	case <-p.stopped:
		return ErrProcessorStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of queued items
func (p *Processor) Len() int {
	return len(p.queue)
}

// Start launches the workers. They run until ctx is done or Stop is called.
func (p *Processor) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(ctx, i)
		}
		logger.Info("Media processor started",
			zap.Int("workers", p.workers),
			zap.Int("queue_size", cap(p.queue)))
	})
}

// Stop closes intake and waits for items already being processed. Queued
// items stay in processing and are picked up by Recover on the next start.
func (p *Processor) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopped)
	})
	p.wg.Wait()
}

func (p *Processor) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopped:
			return
		case item := <-p.queue:
			metrics.MediaQueueDepth.Set(float64(len(p.queue)))
			p.process(ctx, item)

			if p.interval > 0 {
				select {
				case <-time.After(p.interval):
				case <-ctx.Done():
					return
				case <-p.stopped:
					return
				}
			}
		}
	}
}

func (p *Processor) process(ctx context.Context, item domain.MediaWorkItem) {
	log := logger.With(zap.String("media_id", item.MediaID.String()))
	ctx, cancel := appctx.WithStoreTimeout(ctx)
	defer cancel()

	m, err := p.repo.GetByID(ctx, item.MediaID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn("Failed to load media for processing", zap.Error(err))
		}
		return
	}
	if m.Status != domain.MediaStatusProcessing {
		return
	}

	started := p.now()
	m.Processing.StartedAt = &started

	err = p.run(item, m)
	finished := p.now()
	m.Processing.CompletedAt = &finished
	m.UpdatedAt = finished

	if err != nil {
		m.Status = domain.MediaStatusFailed
		m.Processing.Error = err.Error()
		log.Warn("Media processing failed", zap.Error(err))
	} else {
		m.Status = domain.MediaStatusCompleted
		m.Processing.Error = ""
		m.Processing.ProcessingTimeMs = finished.Sub(started).Milliseconds()
	}

	if err := p.repo.Advance(ctx, m, domain.MediaStatusProcessing); err != nil {
		log.Warn("Failed to store processing result", zap.Error(err))
		return
	}

	metrics.MediaProcessedTotal.WithLabelValues(string(item.Type), string(m.Status)).Inc()
	metrics.MediaProcessingDuration.WithLabelValues(string(item.Type)).Observe(finished.Sub(started).Seconds())
}

func (p *Processor) run(item domain.MediaWorkItem, m *domain.Media) error {
	if item.Path == "" {
		return errors.New("missing file path")
	}
	h, ok := p.handlers[item.Type]
	if !ok {
		return fmt.Errorf("unsupported media type: %s", item.Type)
	}
	return h(item, m)
}

// derivedKey inserts suffix before the extension of path
func derivedKey(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

func processImage(item domain.MediaWorkItem, m *domain.Media) error {
	m.URLs.Thumbnail = derivedKey(item.Path, "_thumb")
	m.Metadata.Width = 1920
	m.Metadata.Height = 1080
	m.Metadata.Format = "JPEG"
	m.Metadata.ThumbnailGenerated = true
	return nil
}

func processVideo(item domain.MediaWorkItem, m *domain.Media) error {
	m.URLs.Thumbnail = derivedKey(item.Path, "_thumb")
	m.URLs.Preview = derivedKey(item.Path, "_preview")
	m.Metadata.Width = 1920
	m.Metadata.Height = 1080
	m.Metadata.Duration = 60
	m.Metadata.FPS = 30
	m.Metadata.Format = "MP4"
	m.Metadata.ThumbnailGenerated = true
	return nil
}

func processAudio(item domain.MediaWorkItem, m *domain.Media) error {
	m.URLs.Waveform = derivedKey(item.Path, "_waveform")
	m.Metadata.Duration = 180
	m.Metadata.Channels = 2
	m.Metadata.SampleRate = 44100
	m.Metadata.Format = "MP3"
	m.Metadata.WaveformGenerated = true
	return nil
}

func processDocument(item domain.MediaWorkItem, m *domain.Media) error {
	m.URLs.Preview = derivedKey(item.Path, "_preview")
	m.Metadata.Format = strings.ToUpper(strings.TrimPrefix(filepath.Ext(item.Path), "."))
	return nil
}
