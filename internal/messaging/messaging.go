package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DetectionEventsQueue = "detection_events"
	RetryDelay           = 5 * time.Second
	MaxConnectRetry      = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// BatchEventPayload announces the outcome of one processed upload batch.
type BatchEventPayload struct {
	BatchId       uuid.UUID
	Status        string
	ImageCount    int
	RegularHoles  int
	ThreadedHoles int
	ArchiveKey    string `json:",omitempty"`
	Error         string `json:",omitempty"`
	Timestamp     time.Time
}

type Publisher interface {
	PublishBatchEvent(ctx context.Context, payload BatchEventPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
