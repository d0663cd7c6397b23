package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devedd/neurochat/internal/maintenance"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DeclareTopology declares queue plus its .retry and .dlq companions.
// Rejected messages go to the DLQ; the retry queue dead-letters back into queue
// once its message TTL passes.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	if _, err := ch.QueueDeclare(dlqQ, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlqQ, err)
	}
	if _, err := ch.QueueDeclare(retryQ, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": queue,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", retryQ, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqQ,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
	log   *zap.Logger
}

func NewPublisher(url, queue string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbit dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbit channel: %w", err)
	}
	if err := DeclareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue, log: log.Named("publisher")}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Publish enqueues job as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, job maintenance.Job) error {
	body, err := EncodeJob(job)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID,
			Type:         string(job.Kind),
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", job.Kind, err)
	}
	p.log.Info("job published", zap.String("job_id", job.ID), zap.String("kind", string(job.Kind)))
	return nil
}

func EncodeJob(job maintenance.Job) ([]byte, error) {
	return json.Marshal(job)
}

// DecodeJob rejects bodies without an id or kind.
func DecodeJob(body []byte) (maintenance.Job, error) {
	var job maintenance.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return job, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" || job.Kind == "" {
		return job, fmt.Errorf("decode job: missing job_id or kind")
	}
	return job, nil
}
