package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"gopherai-insect/internal/model"
)

// RecordPublisher sends classification records to a durable queue.
type RecordPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewRecordPublisher(conn *amqp.Connection, queueName string) *RecordPublisher {
	return &RecordPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *RecordPublisher) Publish(ctx context.Context, rec model.ClassificationRecord) error {
	payload, err := EncodeRecord(rec)
	if err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    rec.ID,
			Timestamp:    rec.CreatedAt,
			Type:         "classification.record",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish classification record failed: %w", err)
	}
	return nil
}

func EncodeRecord(rec model.ClassificationRecord) ([]byte, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal classification record failed: %w", err)
	}
	return payload, nil
}

func DecodeRecord(body []byte) (model.ClassificationRecord, error) {
	var rec model.ClassificationRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return rec, fmt.Errorf("decode classification record failed: %w", err)
	}
	if rec.ID == "" {
		return rec, fmt.Errorf("decode classification record failed: missing id")
	}
	return rec, nil
}
