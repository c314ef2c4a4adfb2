package worker

import (
	"context"
	"errors"
	"time"

	"erpsync/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reader is the subset of *kafka.Reader the worker uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Processor handles one message value.
type Processor interface {
	Process(ctx context.Context, value []byte) error
}

type Worker struct {
	reader    Reader
	processor Processor
	logger    *zap.Logger
}

// NewReader subscribes to the sync request topic with the configured
// consumer group.
func NewReader(cfg *config.Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers(),
		GroupID:        cfg.KafkaGroupID,
		Topic:          cfg.KafkaSyncTopic,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
	})
}

func New(reader Reader, processor Processor, logger *zap.Logger) *Worker {
	return &Worker{
		reader:    reader,
		processor: processor,
		logger:    logger.With(zap.String("component", "worker")),
	}
}

// Run consumes messages one at a time until ctx is cancelled. Every message
// is committed after processing; a failed request is not redelivered.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started, listening for sync requests...")

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("Failed to read message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		log := w.logger.With(
			zap.String("topic", message.Topic),
			zap.Int("partition", message.Partition),
			zap.Int64("offset", message.Offset))
		log.Debug("Received message", zap.ByteString("value", message.Value))

		if err := w.processor.Process(ctx, message.Value); err != nil {
			log.Error("Failed to process message", zap.Error(err))
		}

		if err := w.reader.CommitMessages(context.WithoutCancel(ctx), message); err != nil {
			log.Error("Failed to commit message", zap.Error(err))
		}
	}
}

func (w *Worker) Stop() error {
	w.logger.Info("Stopping worker...")
	return w.reader.Close()
}
