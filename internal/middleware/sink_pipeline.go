package middleware

import (
	"context"
	"sync"
	"time"

	"CrashCast/internal/domain/models"
	drepo "CrashCast/internal/domain/repository"
)

// Sink is the minimal downstream interface the pipeline needs.
type Sink interface {
	Process(ctx context.Context, ev models.PredictionEvent) error
}

// SinkPipeline sits between the emission channel and slow sinks (Kafka,
// ClickHouse). Emission callbacks must never block the forecast loop, so
// the pipeline buffers events and flushes them from its own goroutine with
// backoff when the sink is unavailable.
type SinkPipeline struct {
	sink    Sink
	metrics drepo.Metrics
	bufCh   chan models.PredictionEvent
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

type PipelineOption func(*SinkPipeline)

// WithBufferSize sets the buffer capacity for events awaiting flush.
func WithBufferSize(n int) PipelineOption {
	return func(p *SinkPipeline) {
		if n > 0 {
			p.bufCh = make(chan models.PredictionEvent, n)
		}
	}
}

// NewSinkPipeline creates a pipeline in front of the given sink.
func NewSinkPipeline(sink Sink, metrics drepo.Metrics, opts ...PipelineOption) *SinkPipeline {
	p := &SinkPipeline{
		sink:    sink,
		metrics: metrics,
		bufCh:   make(chan models.PredictionEvent, 1000),
	}
	if metrics == nil {
		p.metrics = drepo.NopMetrics{}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue hands an event to the pipeline without blocking. Overflow counts
// as an error but never stalls the caller.
func (p *SinkPipeline) Enqueue(ev models.PredictionEvent) {
	select {
	case p.bufCh <- ev:
	default:
		p.metrics.RecordError("pipeline_buffer_drop")
	}
}

// Start launches background flushing. A stopped pipeline may be started
// again; events enqueued in between stay buffered until the next start.
func (p *SinkPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-stop:
				p.drain(ctx)
				return
			case ev := <-p.bufCh:
				if err := p.sink.Process(ctx, ev); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					select {
					case <-stop:
						return
					case <-time.After(backoff):
					}
					// Requeue if space allows; drop otherwise.
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// drain flushes whatever is buffered at shutdown, best effort.
func (p *SinkPipeline) drain(ctx context.Context) {
	for {
		select {
		case ev := <-p.bufCh:
			if err := p.sink.Process(ctx, ev); err != nil {
				p.metrics.RecordError("pipeline_flush")
				return
			}
		default:
			return
		}
	}
}

// Stop halts flushing and waits for the worker.
func (p *SinkPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	p.wg.Wait()
}

// Depth reports the number of buffered events.
func (p *SinkPipeline) Depth() int {
	return len(p.bufCh)
}
