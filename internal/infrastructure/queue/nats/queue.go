package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/askmydocs/internal/infrastructure/resilience"
)

const workerGroup = "indexers"

// uploadEvent is the wire payload announcing a stored upload.
type uploadEvent struct {
	UploadID    string    `json:"upload_id"`
	PublishedAt time.Time `json:"published_at"`
}

type Queue struct {
	conn        *nats.Conn
	subject     string
	executor    *resilience.Executor
	lagObserver func(time.Duration)
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
	// LagObserver receives the publish-to-delivery delay of every message.
	LagObserver func(time.Duration)
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

	conn, err := nats.Connect(
		url,
		nats.Name("askmydocs"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:        conn,
		subject:     subject,
		executor:    options.ResilienceExecutor,
		lagObserver: options.LagObserver,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishUploadReceived(ctx context.Context, uploadID string) error {
	payload, err := encodeEvent(uploadID, time.Now().UTC())
	if err != nil {
		return err
	}
	call := func(context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Run(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return wrapTemporaryIfNeeded(err)
}

// SubscribeUploadReceived delivers events to handler through a queue group
// so that each upload is processed by one worker. It blocks until ctx is
// cancelled, then drains the subscription.
func (q *Queue) SubscribeUploadReceived(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		ev, err := decodeEvent(msg.Data)
		if err != nil {
			slog.Error("queue_message_invalid", "subject", msg.Subject, "error", err)
			return
		}
		if q.lagObserver != nil && !ev.PublishedAt.IsZero() {
			q.lagObserver(time.Since(ev.PublishedAt))
		}
		if err := handler(ctx, ev.UploadID); err != nil {
			slog.Error("worker_handler_failed", "upload_id", ev.UploadID, "error", err)
		}
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
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeEvent(uploadID string, at time.Time) ([]byte, error) {
	payload, err := json.Marshal(uploadEvent{UploadID: uploadID, PublishedAt: at})
	if err != nil {
		return nil, fmt.Errorf("encode upload event: %w", err)
	}
	return payload, nil
}

func decodeEvent(data []byte) (uploadEvent, error) {
	var ev uploadEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return uploadEvent{}, fmt.Errorf("decode upload event: %w", err)
	}
	if ev.UploadID == "" {
		return uploadEvent{}, errors.New("upload event without id")
	}
	return ev, nil
}
