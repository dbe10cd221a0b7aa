package worker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"gopherai-insect/internal/model"
	"gopherai-insect/internal/pkg/logger"
	"gopherai-insect/internal/platform/rabbitmq"
)

type RecordSink interface {
	Create(rec *model.ClassificationRecord) error
}

// RecordHistoryWorker drains the classification record queue into the
// history sink.
type RecordHistoryWorker struct {
	conn      *amqp.Connection
	sink      RecordSink
	queueName string
	log       *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRecordHistoryWorker(conn *amqp.Connection, sink RecordSink, queueName string, log *zap.Logger) *RecordHistoryWorker {
	return &RecordHistoryWorker{
		conn:      conn,
		sink:      sink,
		queueName: queueName,
		log:       logger.OrNop(log),
	}
}

func (w *RecordHistoryWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("record queue delivery channel closed", zap.String("queue", w.queueName))
					return
				}
				if w.handle(d.Body) {
					_ = d.Ack(false)
				} else {
					_ = d.Nack(false, false)
				}
			}
		}
	}()

	w.log.Info("record history worker started", zap.String("queue", w.queueName))
	return nil
}

// handle stores one delivery body and reports whether it should be acked.
// Undecodable or unstorable records are dropped rather than requeued.
func (w *RecordHistoryWorker) handle(body []byte) bool {
	rec, err := rabbitmq.DecodeRecord(body)
	if err != nil {
		w.log.Error("worker decode record failed", zap.Error(err))
		return false
	}
	if err := w.sink.Create(&rec); err != nil {
		w.log.Error("worker persist record failed", zap.String("record_id", rec.ID), zap.Error(err))
		return false
	}
	return true
}

func (w *RecordHistoryWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
