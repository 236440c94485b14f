package main

import (
	"context"
	"log"

	"github.com/altukhov/dialog/pkg/config"
	"github.com/altukhov/dialog/pkg/mailer"
)

func main() {
	cfg := config.Load()

	sender := mailer.NewSender(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUsername,
		cfg.SMTPPassword,
		cfg.SMTPFrom,
		cfg.PublicBaseURL,
	)

	consumer := NewConsumer(cfg.KafkaBrokers, cfg.EmailTopic, "email-worker-group", sender)
	defer consumer.Close()

	log.Println("Starting email worker...")
	consumer.Consume(context.Background())
}
