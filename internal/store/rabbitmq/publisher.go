package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	prefix string
}

type JobMessage struct {
	TaskID string `json:"task_id"`
	Topic  string `json:"topic"`
}

// QueueName is the durable queue for one topic: <prefix>.<topic>.
func QueueName(prefix, topic string) string {
	return prefix + "." + topic
}

// DeclareTopology declares the main queue and its dead-letter queue. Publisher
// and worker both call it so either side can start first.
func DeclareTopology(ch *amqp.Channel, queue string) error {
	dlqQ := queue + ".dlq"

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare %s: %w", dlqQ, err)
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	if _, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

func NewPublisher(url, prefix string, topics []string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	for _, topic := range topics {
		if err := DeclareTopology(ch, QueueName(prefix, topic)); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &Publisher{conn: conn, ch: ch, prefix: prefix}, nil
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

func (p *Publisher) PublishJob(ctx context.Context, topic, taskID string) error {
	body, err := json.Marshal(JobMessage{TaskID: taskID, Topic: topic})
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",                         // default exchange
		QueueName(p.prefix, topic), // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    taskID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
