package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/campus-search/internal/core/domain"
	"github.com/kirillkom/campus-search/internal/infrastructure/resilience"
)

const workerQueueGroup = "index-workers"

// indexJob is the wire form of one index request.
type indexJob struct {
	DocumentID string    `json:"doc_id"`
	QueuedAt   time.Time `json:"queued_at"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
	onLag    func(time.Duration)
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
	// OnJobLag observes the delay between publication and delivery.
	OnJobLag func(time.Duration)
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("campus-search"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
		onLag:    options.OnJobLag,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishIndexJob(ctx context.Context, id domain.DocumentID) error {
	payload, err := encodeJob(id, time.Now().UTC())
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapPublishError(err)
	}
	return nil
}

// SubscribeIndexJobs blocks until ctx is done, handing each job to handler.
// Workers share one queue group so every job is processed once.
func (q *Queue) SubscribeIndexJobs(ctx context.Context, handler func(context.Context, domain.DocumentID) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		q.dispatch(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) dispatch(ctx context.Context, data []byte, handler func(context.Context, domain.DocumentID) error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	id, queuedAt, err := decodeJob(data)
	if err != nil {
		q.logger.Warn("index_job_rejected", "payload", string(data), "error", err)
		return
	}
	if q.onLag != nil && !queuedAt.IsZero() {
		q.onLag(time.Since(queuedAt))
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, id); err != nil {
		q.logger.Error("index_job_failed", "doc_id", string(id), "error", err)
	}
}

func encodeJob(id domain.DocumentID, at time.Time) ([]byte, error) {
	if err := domain.ValidateDocumentID(string(id)); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(indexJob{DocumentID: string(id), QueuedAt: at})
	if err != nil {
		return nil, fmt.Errorf("marshal index job: %w", err)
	}
	return payload, nil
}

// decodeJob also accepts a bare document id so jobs can be queued by hand
// with `nats pub`.
func decodeJob(data []byte) (domain.DocumentID, time.Time, error) {
	raw := strings.TrimSpace(string(data))
	var queuedAt time.Time
	if strings.HasPrefix(raw, "{") {
		var job indexJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return "", time.Time{}, domain.WrapError(domain.ErrInvalidInput, "decode index job", err)
		}
		raw = strings.TrimSpace(job.DocumentID)
		queuedAt = job.QueuedAt
	}
	if err := domain.ValidateDocumentID(raw); err != nil {
		return "", time.Time{}, err
	}
	return domain.DocumentID(raw), queuedAt, nil
}
