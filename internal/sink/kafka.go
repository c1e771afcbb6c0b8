// Package sink publishes committed register values to Kafka.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sugawarayuuta/sonnet"

	"github.com/roach88/sensorreplay/internal/replay"
)

// DefaultWriteTimeout bounds a single publish.
const DefaultWriteTimeout = 2 * time.Second

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the JSON payload of every published commit.
type Message struct {
	RunID          string `json:"run_id"`
	Channel        string `json:"channel"`
	EndpointID     int    `json:"endpoint_id"`
	RegisterOffset int    `json:"register_offset"`
	Value          int64  `json:"value"`
}

// Kafka is a register-store observer that publishes each commit keyed by
// channel id, so a channel's values stay ordered within one partition.
type Kafka struct {
	writer  MessageWriter
	runID   string
	timeout time.Duration
}

// NewKafka creates a sink writing synchronously to topic on brokers.
func NewKafka(brokers []string, topic, runID string) *Kafka {
	return NewKafkaWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}, runID)
}

// NewKafkaWithWriter creates a sink on an existing writer.
func NewKafkaWithWriter(w MessageWriter, runID string) *Kafka {
	return &Kafka{writer: w, runID: runID, timeout: DefaultWriteTimeout}
}

// OnCommit publishes c. Errors are returned to the register store, which
// logs them; the commit itself is not affected.
func (k *Kafka) OnCommit(c replay.Commit) error {
	value, err := sonnet.Marshal(Message{
		RunID:          k.runID,
		Channel:        c.Channel,
		EndpointID:     c.EndpointID,
		RegisterOffset: c.RegisterOffset,
		Value:          c.Value,
	})
	if err != nil {
		return fmt.Errorf("encode commit: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(c.Channel),
		Value: value,
	}); err != nil {
		return fmt.Errorf("publish %q: %w", c.Channel, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
