/*
Package audit carries "actor did X" records from the reservation core to
the audit_log table over a watermill pub/sub.

FLOW:
  Engine/Wallet --Record--> Publisher --audit.recorded--> Recorder --> AuditStore

  The engine records after its unit has committed. Publishing is the only
  work done on the request path; the Recorder persists entries
  asynchronously, so a slow or broken audit backend never holds a seat
  or wallet lock.

BACKENDS:
  channel: watermill gochannel, in process (default)
  redis:   Redis Streams
  kafka:   Kafka topic

SEE ALSO:
  - reservation/audit.go: AuditSink contract
  - backend.go: Backend construction per config
*/
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/warp/seat-ledger/reservation"
)

// Topic is the pub/sub topic audit entries travel on.
const Topic = "audit.recorded"

// Publisher is a reservation.AuditSink that publishes entries.
type Publisher struct {
	pub message.Publisher
	now func() time.Time
}

var _ reservation.AuditSink = (*Publisher)(nil)

func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub, now: time.Now}
}

// Record publishes one audit entry.
func (p *Publisher) Record(ctx context.Context, actorID, description string) error {
	entry := reservation.AuditEntry{
		ID:          reservation.NewID(),
		ActorID:     actorID,
		Description: description,
		RecordedAt:  p.now().UTC(),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := p.pub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publish audit entry: %w", err)
	}
	return nil
}
