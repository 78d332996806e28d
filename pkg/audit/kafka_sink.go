/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaSinkConfig configures a KafkaSink.
type KafkaSinkConfig struct {
	Name    string
	Brokers []string
	Topic   string

	// BatchTimeout is the maximum time to wait before flushing a batch.
	// Default: 100ms
	BatchTimeout time.Duration

	// WriteTimeout bounds a single produce request. Default: 10s
	WriteTimeout time.Duration
}

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes audit events as JSON messages keyed by target ID, so all
// events of one escalation land on the same partition in order.
type KafkaSink struct {
	name   string
	topic  string
	writer messageWriter
	logger *zap.Logger

	mu     sync.Mutex
	closed bool

	written atomic.Int64
	failed  atomic.Int64
}

func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		MaxAttempts:            3,
		AllowAutoTopicCreation: false,
	}

	sink := newKafkaSinkWithWriter(cfg.Name, cfg.Topic, writer, logger)
	sink.logger.Info("Kafka audit sink created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return sink, nil
}

func newKafkaSinkWithWriter(name, topic string, w messageWriter, logger *zap.Logger) *KafkaSink {
	if name == "" {
		name = "kafka"
	}
	return &KafkaSink{
		name:   name,
		topic:  topic,
		writer: w,
		logger: logger.Named("kafka-sink").With(zap.String("sink", name)),
	}
}

// KafkaError carries the classified cause of a failed produce.
type KafkaError struct {
	Type string
	Err  error
}

func (e *KafkaError) Error() string {
	return fmt.Sprintf("kafka %s error: %v", e.Type, e.Err)
}

func (e *KafkaError) Unwrap() error { return e.Err }

func (e *KafkaError) ErrorType() string { return "kafka_" + e.Type }

// classifyKafkaError buckets produce errors for metrics and logging.
func classifyKafkaError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return "dns"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "timeout"
		}
		return "network"
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "SASL") || strings.Contains(msg, "authentication"):
		return "auth"
	case strings.Contains(msg, "authorization") || strings.Contains(msg, "ACL"):
		return "authorization"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return "timeout"
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return "network"
	case strings.Contains(msg, "broker") || strings.Contains(msg, "leader"):
		return "broker"
	case strings.Contains(msg, "topic"):
		return "topic"
	default:
		return "other"
	}
}

func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("kafka sink %s is closed", s.name)
	}

	value, err := json.Marshal(event)
	if err != nil {
		s.failed.Add(1)
		return &KafkaError{Type: "marshal", Err: err}
	}

	msg := kafka.Message{
		Key:   []byte(event.Target.ID),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "severity", Value: []byte(event.Severity)},
		},
	}

	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		s.failed.Add(1)
		kerr := &KafkaError{Type: classifyKafkaError(err), Err: err}
		s.logger.Debug("failed to publish audit event",
			zap.String("topic", s.topic),
			zap.String("event_id", event.ID),
			zap.String("error_type", kerr.Type),
			zap.Error(err))
		return kerr
	}

	s.written.Add(1)
	return nil
}

// Stats returns the number of published and failed events.
func (s *KafkaSink) Stats() (written, failed int64) {
	return s.written.Load(), s.failed.Load()
}

func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Info("closing Kafka audit sink",
		zap.Int64("events_written", s.written.Load()),
		zap.Int64("events_failed", s.failed.Load()))
	return s.writer.Close()
}

func (s *KafkaSink) Name() string {
	return s.name
}
