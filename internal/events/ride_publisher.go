// README: Kafka publisher for ride state changes.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"tripnow/internal/modules/ride"
	"tripnow/internal/types"
)

const publishTimeout = 2 * time.Second

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// RideStateChanged is the record written for every ride transition.
type RideStateChanged struct {
	RideID     types.ID  `json:"rideId"`
	FromStatus string    `json:"from"`
	ToStatus   string    `json:"to"`
	ActorType  string    `json:"actorType"`
	ActorID    *types.ID `json:"actorId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type RidePublisher struct {
	writer MessageWriter
}

func NewRidePublisher(w MessageWriter) *RidePublisher {
	return &RidePublisher{writer: w}
}

// Publish writes e keyed by ride id so a ride's events stay ordered within
// one partition.
func (p *RidePublisher) Publish(ctx context.Context, e ride.Event) error {
	b, err := json.Marshal(RideStateChanged{
		RideID:     e.RideID,
		FromStatus: string(e.FromStatus),
		ToStatus:   string(e.ToStatus),
		ActorType:  e.ActorType,
		ActorID:    e.ActorID,
		OccurredAt: e.CreatedAt.UTC(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RideID),
		Value: b,
		Time:  e.CreatedAt,
	})
}
