// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/frontdesk/pkg/config"
)

// New builds the audit manager from the server configuration. The log sink is
// always present when auditing is enabled; webhook and Kafka sinks are added
// when configured. A disabled audit section yields a nil *Manager, on which
// Emit and Close are no-ops.
func New(cfg config.Audit, logger *zap.Logger) (*Manager, error) {
	if !cfg.Enabled {
		logger.Info("audit trail disabled")
		return nil, nil
	}

	sinks := []Sink{NewLogSink(logger)}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhookSink(WebhookSinkConfig{URL: cfg.WebhookURL}, logger))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := NewKafkaSink(KafkaSinkConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		}, logger)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, fmt.Errorf("building kafka audit sink: %w", err)
		}
		sinks = append(sinks, ks)
	}

	return NewManager(sinks, DefaultQueuedSinkConfig(), logger), nil
}
