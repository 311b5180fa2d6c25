package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Producer publishes domain events to the shared event topic. Messages are
// keyed by aggregate ID so all events of one order or product land in the
// same partition, in order.
type Producer struct {
	writer *kafka.Writer
	log    *logrus.Entry
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{
		writer: writer,
		log:    logrus.WithField("component", "kafka-producer"),
	}
}

func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal event")
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}); err != nil {
		p.log.WithError(err).WithField("key", key).Error("write message")
		return errors.Wrap(err, "write message")
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
