// Package publish streams probe results to a Pub/Sub topic so downstream
// consumers (dashboards, alerting) see monitor rows as they are produced.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/kestrelsec/netcontrol/pkg/probe"
)

// Publisher sends one probe result per message.
type Publisher interface {
	Publish(ctx context.Context, cycleID string, res probe.Result) error
}

// resultMessage is the wire shape of a published result row.
type resultMessage struct {
	CycleID    string    `json:"cycle_id"`
	Address    string    `json:"address"`
	Port       uint16    `json:"port,omitempty"`
	Kind       string    `json:"kind"`
	Reachable  bool      `json:"reachable"`
	LatencyMS  float64   `json:"latency_ms"`
	Detail     string    `json:"detail"`
	ObservedAt time.Time `json:"observed_at"`
}

// PubSubPublisher implements Publisher using a Pub/Sub topic.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubPublisher constructs a publisher for the given topic. If the topic
// is nil, publishes are treated as no-ops.
func NewPubSubPublisher(topic *pubsub.Topic) *PubSubPublisher {
	return &PubSubPublisher{topic: topic}
}

// Publish sends the result to the topic. If topic is nil, it is a no-op.
func (p *PubSubPublisher) Publish(ctx context.Context, cycleID string, res probe.Result) error {
	if p.topic == nil {
		return nil
	}
	msg := resultMessage{
		CycleID:    cycleID,
		Address:    res.Unit.Address,
		Port:       res.Unit.Port,
		Kind:       string(res.Unit.Kind),
		Reachable:  res.Reachable,
		LatencyMS:  float64(res.Latency.Microseconds()) / 1000.0,
		Detail:     res.Detail,
		ObservedAt: res.ObservedAt.UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"cycle_id": cycleID,
			"kind":     string(res.Unit.Kind),
		},
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

// NoopPublisher is used when no topic is configured.
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, cycleID string, res probe.Result) error {
	return nil
}
