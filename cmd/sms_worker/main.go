package main

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/joho/godotenv"
	"github.com/lumenshop/storefront/config"
	"github.com/lumenshop/storefront/pkg/helpers"
	"github.com/lumenshop/storefront/pkg/smsq"
)

// sms_worker drains the SMS queue. With SMS_SEND_ENABLED=false the worker acks
// jobs after logging them, which is how local development observes OTP codes.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-sms-worker", cfg.Env)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQSMSQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(16, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	if _, err := ch.QueueDeclare(cfg.RabbitMQSMSQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitMQSMSQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			var job smsq.Job
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				logger.WithError(err).Warn("bad message")
				_ = msg.Nack(false, false)
				continue
			}
			if job.To == "" || job.Body == "" {
				logger.Warn("sms job missing recipient or body")
				_ = msg.Nack(false, false)
				continue
			}

			if !cfg.SMSSendEnabled {
				logger.WithField("to", job.To).WithField("kind", job.Kind).Info("sms send disabled; job logged")
				_ = msg.Ack(false)
				continue
			}

			// Gateway integration goes here; until one is configured the
			// job is requeued so nothing is silently dropped.
			logger.WithField("to", job.To).Warn("no sms gateway configured")
			_ = msg.Nack(false, true)
			time.Sleep(time.Second)
		}
		close(done)
	}()

	logger.Infof("sms worker listening on queue=%s", cfg.RabbitMQSMSQueue)
	<-stop
	logger.Info("shutting down...")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}
