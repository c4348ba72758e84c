package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

type Producer struct {
	writer  *kgo.Writer
	timeout time.Duration
}

func NewProducer(brokersCSV, topic string) (*Producer, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	w := &kgo.Writer{
		Addr:         kgo.TCP(splitCSV(brokersCSV)...),
		Topic:        topic,
		Balancer:     &kgo.LeastBytes{},
		RequiredAcks: kgo.RequireOne,
	}

	return &Producer{
		writer:  w,
		timeout: 3 * time.Second,
	}, nil
}

func (p *Producer) Close() error { return p.writer.Close() }

// PublishNotification enqueues a processing hint keyed by task id.
func (p *Producer) PublishNotification(ctx context.Context, n ProcessingNotification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}

	// Small timeout so the API does not hang when Kafka is down.
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.writer.WriteMessages(cctx, kgo.Message{
		Key:   []byte(n.TaskID),
		Value: b,
		Time:  time.Now(),
	})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
