// Package kafka produces pipeline rows to a Kafka topic, one message per row.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"txservice/internal/logging"
	"txservice/sink"
)

type Config struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	Acks    int16    `yaml:"required_acks"` // 0,1,-1
}

type driver struct {
	cfg  Config
	p    sarama.AsyncProducer
	done chan struct{}
	once sync.Once
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return errors.New("kafka-sink: brokers and topic are required")
	}

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	p, err := sarama.NewAsyncProducer(cfg.Brokers, sc)
	if err != nil {
		return err
	}
	d.start(cfg, p)
	return nil
}

func (d *driver) start(cfg Config, p sarama.AsyncProducer) {
	d.cfg, d.p = cfg, p
	d.done = make(chan struct{})
	go d.drainErrors()
}

func (d *driver) drainErrors() {
	defer close(d.done)
	for perr := range d.p.Errors() {
		logging.L().Error("kafka-sink: produce failed", zap.String("topic", perr.Msg.Topic), zap.Error(perr.Err))
	}
}

func (d *driver) Push(ctx context.Context, rec sink.Record) error {
	for _, r := range rec.Rows {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("kafka-sink: %w", err)
		}
		msg := &sarama.ProducerMessage{
			Topic:   d.cfg.Topic,
			Value:   sarama.ByteEncoder(b),
			Headers: toRecordHeaders(rec.Headers),
		}
		if rec.Key != nil {
			msg.Key = sarama.ByteEncoder(rec.Key)
		}
		select {
		case d.p.Input() <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close flushes buffered messages and waits for the error drain to finish.
func (d *driver) Close() error {
	if d.p == nil {
		return nil
	}
	d.once.Do(func() {
		d.p.AsyncClose()
		<-d.done
	})
	return nil
}

func toRecordHeaders(h map[string][]byte) []sarama.RecordHeader {
	if len(h) == 0 {
		return nil
	}
	out := make([]sarama.RecordHeader, 0, len(h))
	for k, v := range h {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: v})
	}
	return out
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }
