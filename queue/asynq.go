// Package queue implements background task scheduling on asynq with Redis
// as the backing store.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/interfaces"
	"github.com/root-sector-ltd-and-co-kg/multi-payment-gateway-module-messaging/types"
)

const queueMessaging = "messaging"

// Client implements interfaces.TaskClient using asynq.
type Client struct {
	client *asynq.Client
}

var _ interfaces.TaskClient = (*Client)(nil)

// NewClient constructs a task client from a Redis URL.
func NewClient(redisURL string) (*Client, error) {
	if redisURL == "" {
		return nil, errors.New("redis URL is required")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &Client{client: asynq.NewClient(opt)}, nil
}

// Enqueue schedules a task, optionally delayed. Returns the backend task id.
func (c *Client) Enqueue(ctx context.Context, task types.Task, delay time.Duration) (string, error) {
	if task.Type == "" {
		return "", errors.New("task type is required")
	}
	opts := []asynq.Option{asynq.Queue(queueMessaging)}
	if delay > 0 {
		opts = append(opts, asynq.ProcessIn(delay))
	}
	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(task.Type, task.Payload), opts...)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s task: %w", task.Type, err)
	}
	return info.ID, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Server implements interfaces.TaskServer using asynq workers.
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

var _ interfaces.TaskServer = (*Server)(nil)

// NewServer constructs a worker server consuming the messaging queue.
func NewServer(redisURL string, concurrency int, logger zerolog.Logger) (*Server, error) {
	if redisURL == "" {
		return nil, errors.New("redis URL is required")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}

	workerLog := logger.With().Str("component", "task-server").Logger()
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueMessaging: 2, "default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			workerLog.Error().Err(err).Str("taskType", task.Type()).Msg("Task failed")
		}),
	})
	return &Server{server: srv, mux: asynq.NewServeMux()}, nil
}

// Register binds a handler to a task type. Handlers must be idempotent;
// a returned error requeues the task per the backend retry policy.
func (s *Server) Register(taskType string, h interfaces.TaskHandler) {
	s.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, types.Task{Type: t.Type(), Payload: t.Payload()})
	})
}

// Run starts the workers and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	_ = ctx
	s.server.Shutdown()
	return nil
}
