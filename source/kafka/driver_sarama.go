package kafka

import (
	"context"
	"errors"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"txservice/internal/logging"
)

func init() { Register("sarama", func() Adapter { return &SaramaDriver{} }) }

// SaramaDriver consumes through a sarama consumer group. Offsets are marked
// once a message has been emitted and committed every CommitInterval.
type SaramaDriver struct {
	cfg   Config
	cl    sarama.Client
	group sarama.ConsumerGroup
}

func newSaramaConfig(config Config) (*sarama.Config, error) {
	ver, err := sarama.ParseKafkaVersion(config.Version)
	if err != nil {
		return nil, err
	}
	sc := sarama.NewConfig()
	sc.Version = ver
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = config.CommitInterval
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return sc, nil
}

func (d *SaramaDriver) Configure(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	sc, err := newSaramaConfig(config)
	if err != nil {
		return err
	}
	d.cfg = config
	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return err
	}
	if d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl); err != nil {
		_ = d.cl.Close()
		return err
	}
	return nil
}

func (d *SaramaDriver) Run(ctx context.Context, emit EmitFunc) error {
	if d.group == nil {
		return errors.New("kafka: driver not configured")
	}
	go d.drainErrors()

	handler := &groupHandler{emit: emit}
	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (d *SaramaDriver) drainErrors() {
	for err := range d.group.Errors() {
		logging.L().Warn("kafka consumer error", zap.Error(err))
	}
}

func (d *SaramaDriver) Close() error {
	var errs []error
	if d.group != nil {
		errs = append(errs, d.group.Close())
	}
	if d.cl != nil && !d.cl.Closed() {
		errs = append(errs, d.cl.Close())
	}
	return errors.Join(errs...)
}

type groupHandler struct {
	emit EmitFunc
}

func (*groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	logging.L().Info("kafka session started",
		zap.String("member", sess.MemberID()),
		zap.Int32("generation", sess.GenerationID()))
	return nil
}

func (*groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.emit(sess.Context(), fromSarama(msg)); err != nil {
				return err
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func fromSarama(msg *sarama.ConsumerMessage) *Message {
	return &Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   toHeaderMap(msg.Headers),
		Timestamp: msg.Timestamp,
	}
}

func toHeaderMap(src []*sarama.RecordHeader) map[string][]byte {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(src))
	for _, h := range src {
		out[string(h.Key)] = h.Value
	}
	return out
}
