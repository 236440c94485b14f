package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/altukhov/dialog/pkg/mailer"
)

const sendAttempts = 3

type Consumer struct {
	reader *kafka.Reader
	sender *mailer.Sender
}

func NewConsumer(brokers []string, topic string, groupID string, sender *mailer.Sender) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: r, sender: sender}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error reading message: %v. Retrying in 1s...", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var task mailer.Task
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Printf("Failed to unmarshal email task: %v", err)
			continue
		}

		if err := c.deliver(task); err != nil {
			// The offset is already committed; a dead task is logged, not
			// redelivered forever.
			log.Printf("Giving up on %s email to %s: %v", task.Kind, task.To, err)
			continue
		}
		log.Printf("Sent %s email to %s", task.Kind, task.To)
	}
}

func (c *Consumer) deliver(task mailer.Task) error {
	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err = c.sender.Send(task); err == nil {
			return nil
		}
		log.Printf("Attempt %d/%d to send %s email to %s failed: %v",
			attempt, sendAttempts, task.Kind, task.To, err)
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return err
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
