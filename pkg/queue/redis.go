package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"CrashCast/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Redis-list backed queue: producers LPUSH messages,
// workers BRPOP and dispatch them to registered jobs by message type.
type RedisQueue struct {
	log       *logger.Logger
	config    *Config
	client    *redis.Client
	jobs      map[string]Job
	wg        sync.WaitGroup
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	keyPrefix string
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets a custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisQueue creates a new Redis queue.
func NewRedisQueue(lgr *logger.Logger, config *Config, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryLimit <= 0 {
		config.RetryLimit = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	rq := &RedisQueue{
		log:       lgr,
		config:    config,
		client:    client,
		jobs:      make(map[string]Job),
		ctx:       ctx,
		cancel:    cancel,
		keyPrefix: "crashcast:queue",
	}

	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob registers a job handler for its message type.
func (r *RedisQueue) RegisterJob(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		return fmt.Errorf("job for type %q already registered", job.Type())
	}
	r.jobs[job.Type()] = job
	return nil
}

// PublishMessage enqueues a message of the given type.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	msg := Message{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.key(msgType), b).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Start launches one worker pool per registered message type.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return errors.New("queue already running")
	}
	if len(r.jobs) == 0 {
		return errors.New("no jobs registered")
	}
	r.isRunning = true

	for msgType := range r.jobs {
		for i := 0; i < r.config.Workers; i++ {
			r.wg.Add(1)
			go r.worker(msgType)
		}
	}

	if r.log != nil {
		r.log.Info("redis queue started", logger.Int("workers", r.config.Workers), logger.Int("types", len(r.jobs)))
	}
	return nil
}

// Stop halts all workers and waits for in-flight messages to finish.
func (r *RedisQueue) Stop() {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()

	if r.log != nil {
		r.log.Info("redis queue stopped")
	}
}

func (r *RedisQueue) worker(msgType string) {
	defer r.wg.Done()

	key := r.key(msgType)
	for {
		select {
		case <-r.ctx.Done():
			return
		default:
		}

		res, err := r.client.BRPop(r.ctx, 2*time.Second, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			if r.log != nil {
				r.log.Error("brpop failed", logger.Error(err), logger.String("key", key))
			}
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(r.config.RetryDelay):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			if r.log != nil {
				r.log.Error("malformed queue message dropped", logger.Error(err))
			}
			continue
		}
		r.dispatch(&msg)
	}
}

func (r *RedisQueue) dispatch(msg *Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		if r.log != nil {
			r.log.Warn("no job for message type", logger.String("type", msg.Type))
		}
		return
	}

	if err := job.Handle(r.ctx, msg.Payload); err != nil {
		msg.Attempts++
		if msg.Attempts >= r.config.RetryLimit {
			if r.log != nil {
				r.log.Error("message dropped after retries",
					logger.String("type", msg.Type),
					logger.Int("attempts", msg.Attempts),
					logger.Error(err),
				)
			}
			return
		}
		// Requeue at the tail for a later attempt.
		if b, merr := json.Marshal(msg); merr == nil {
			_ = r.client.LPush(r.ctx, r.key(msg.Type), b).Err()
		}
	}
}

func (r *RedisQueue) key(msgType string) string {
	return r.keyPrefix + ":" + msgType
}
