package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.uber.org/zap"

	"github.com/warp/seat-ledger/reservation"
)

const handlerName = "audit_recorder"

// DefaultRetry backs off between appends of one message. A message that
// still fails is nacked and redelivered by the backend.
var DefaultRetry = RetryPolicy{
	MaxRetries:      5,
	InitialInterval: 100 * time.Millisecond,
	MaxInterval:     5 * time.Second,
	Multiplier:      2,
}

// RetryPolicy configures the backoff applied to a failing append.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// Recorder consumes audit entries and appends them to an AuditStore.
type Recorder struct {
	Retry RetryPolicy

	sub   message.Subscriber
	store reservation.AuditStore
	log   *zap.Logger
	wg    sync.WaitGroup
}

func NewRecorder(sub message.Subscriber, store reservation.AuditStore, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{Retry: DefaultRetry, sub: sub, store: store, log: log.Named("audit")}
}

// Start runs a watermill router over Topic in the background until ctx is
// cancelled or the subscriber is closed. The subscription is in place when
// Start returns.
func (r *Recorder) Start(ctx context.Context) error {
	wlog := NewZapLogger(r.log)
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wlog)
	if err != nil {
		return fmt.Errorf("audit router: %w", err)
	}
	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      r.Retry.MaxRetries,
			InitialInterval: r.Retry.InitialInterval,
			MaxInterval:     r.Retry.MaxInterval,
			Multiplier:      r.Retry.Multiplier,
			Logger:          wlog,
		}.Middleware,
	)
	router.AddNoPublisherHandler(handlerName, Topic, r.sub, r.handle)

	runErr := make(chan error, 1)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		runErr <- router.Run(ctx)
		r.log.Debug("audit recorder stopped")
	}()

	select {
	case <-router.Running():
		return nil
	case err := <-runErr:
		if err == nil {
			err = errors.New("router exited before start")
		}
		return fmt.Errorf("subscribe %s: %w", Topic, err)
	}
}

// Wait blocks until the router has stopped.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// handle appends one entry. A nil return acks the message; an error is
// retried with backoff and then nacked.
func (r *Recorder) handle(msg *message.Message) error {
	var entry reservation.AuditEntry
	if err := json.Unmarshal(msg.Payload, &entry); err != nil {
		// Redelivery cannot fix a malformed payload.
		r.log.Error("dropping malformed audit message",
			zap.String("message_uuid", msg.UUID), zap.Error(err))
		return nil
	}

	err := r.store.AppendAudit(msg.Context(), entry)
	if errors.Is(err, reservation.ErrAlreadyExists) {
		// Redelivered after an earlier successful append.
		return nil
	}
	if err != nil {
		r.log.Warn("audit append failed",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return fmt.Errorf("append audit %s: %w", entry.ID, err)
	}
	return nil
}
