// Package kafka consumes stream pipeline input from Kafka topics.
package kafka

import (
	"context"
	"time"
)

// Message is one consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string][]byte
	Timestamp time.Time
}

// EmitFunc hands a message to the pipeline. A non-nil error stops the
// source; the message is not marked as consumed.
type EmitFunc func(context.Context, *Message) error

type Adapter interface {
	Configure(Config) error
	Run(context.Context, EmitFunc) error
	Close() error
}
