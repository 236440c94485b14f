// Package mailer moves email jobs through Kafka: the API publishes tasks,
// the worker consumes them and talks SMTP. Delivery failures stay in the
// worker; the request path never blocks on a mail server.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type TaskKind string

const (
	TaskConfirmEmail  TaskKind = "confirm_email"
	TaskPasswordReset TaskKind = "password_reset"
)

// Task is one queued email job.
type Task struct {
	Kind  TaskKind `json:"kind"`
	To    string   `json:"to"`
	Name  string   `json:"name"`
	Token string   `json:"token"`
}

// Producer publishes tasks to the email topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *Producer) Enqueue(ctx context.Context, task Task) error {
	value, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal email task: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.To),
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
