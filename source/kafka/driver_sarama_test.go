package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func claimOf(msgs ...*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &fakeClaim{ch: ch}
}

func TestConsumeClaim_EmitsAndMarks(t *testing.T) {
	sess := &fakeSession{ctx: context.Background()}
	claim := claimOf(
		&sarama.ConsumerMessage{Topic: "in", Partition: 1, Offset: 7, Key: []byte("k"), Value: []byte("a"),
			Headers: []*sarama.RecordHeader{{Key: []byte("h"), Value: []byte("v")}}},
		&sarama.ConsumerMessage{Topic: "in", Partition: 1, Offset: 8, Value: []byte("b")},
	)

	var got []*Message
	h := &groupHandler{emit: func(_ context.Context, m *Message) error {
		got = append(got, m)
		return nil
	}}
	if err := h.ConsumeClaim(sess, claim); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(got) != 2 || string(got[0].Value) != "a" || string(got[1].Value) != "b" {
		t.Fatalf("unexpected messages: %+v", got)
	}
	if string(got[0].Headers["h"]) != "v" || string(got[0].Key) != "k" {
		t.Fatalf("key/headers not carried: %+v", got[0])
	}
	if len(sess.marked) != 2 || sess.marked[0] != 7 || sess.marked[1] != 8 {
		t.Fatalf("marked offsets = %v", sess.marked)
	}
}

func TestConsumeClaim_EmitErrorStopsWithoutMarking(t *testing.T) {
	sess := &fakeSession{ctx: context.Background()}
	claim := claimOf(&sarama.ConsumerMessage{Offset: 1, Value: []byte("x")})

	boom := errors.New("sink down")
	h := &groupHandler{emit: func(context.Context, *Message) error { return boom }}
	if err := h.ConsumeClaim(sess, claim); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(sess.marked) != 0 {
		t.Fatalf("failed message was marked: %v", sess.marked)
	}
}

func TestConsumeClaim_StopsOnSessionEnd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sess := &fakeSession{ctx: ctx}
	claim := &fakeClaim{ch: make(chan *sarama.ConsumerMessage)}

	done := make(chan error, 1)
	go func() { done <- (&groupHandler{}).ConsumeClaim(sess, claim) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ConsumeClaim: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("ConsumeClaim did not return after session end")
	}
}

func TestNewSaramaConfig(t *testing.T) {
	sc, err := newSaramaConfig(Config{Version: "2.1.0", StartFrom: "oldest", CommitInterval: time.Second, SASLUser: "u", SASLPass: "p"})
	if err != nil {
		t.Fatalf("newSaramaConfig: %v", err)
	}
	if sc.Consumer.Offsets.Initial != sarama.OffsetOldest {
		t.Fatal("start_from oldest not applied")
	}
	if sc.Consumer.Offsets.AutoCommit.Interval != time.Second {
		t.Fatalf("commit interval = %v", sc.Consumer.Offsets.AutoCommit.Interval)
	}
	if !sc.Net.SASL.Enable || sc.Net.SASL.User != "u" {
		t.Fatal("sasl not configured")
	}
	if _, err := newSaramaConfig(Config{Version: "not-a-version"}); err == nil {
		t.Fatal("expected version parse error")
	}
}

func TestConfigValidate(t *testing.T) {
	ok := Config{Brokers: []string{"b:9092"}, Topics: []string{"t"}, GroupID: "g", StartFrom: "newest"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	bad := ok
	bad.GroupID = ""
	if err := bad.Validate(); err == nil {
		t.Fatal("missing group_id accepted")
	}
}

func TestRegistry(t *testing.T) {
	a, err := NewAdapter("sarama")
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	if _, ok := a.(*SaramaDriver); !ok {
		t.Fatalf("got %T", a)
	}
	if _, err := NewAdapter("kgo"); err == nil {
		t.Fatal("expected unknown driver error")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("TXSERVICE_KAFKA__GROUP_ID", "from-env")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.GroupID != "from-env" {
		t.Fatalf("group_id = %q", cfg.GroupID)
	}
	if cfg.Version != "2.1.0" || cfg.StartFrom != "newest" || cfg.CommitInterval != 5*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}
