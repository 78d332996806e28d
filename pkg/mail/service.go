// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/telekom/frontdesk/pkg/config"
)

// Service owns the mail queue for the lifetime of the server. When mail is
// disabled it has no queue and Enqueue silently drops.
type Service struct {
	queue  *Queue
	logger *zap.SugaredLogger
}

func NewService(cfg config.Mail, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Service{logger: logger.Named("mail-service")}
	if cfg.Disabled {
		s.logger.Info("Mail notifications disabled")
		return s
	}
	s.queue = NewQueue(NewSender(cfg, s.logger), s.logger, QueueOptions{Size: cfg.QueueSize})
	return s
}

// Start launches the queue worker.
func (s *Service) Start() {
	if s.queue != nil {
		s.queue.Start()
	}
}

func (s *Service) Enqueue(id string, receivers []string, subject, body string) error {
	if s.queue == nil {
		s.logger.Debugw("Mail disabled, dropping mail", "id", id, "receivers", len(receivers))
		return nil
	}
	return s.queue.Enqueue(id, receivers, subject, body)
}

func (s *Service) IsEnabled() bool {
	return s.queue != nil
}

// Stop flushes and stops the queue.
func (s *Service) Stop(ctx context.Context) error {
	if s.queue == nil {
		return nil
	}
	s.logger.Info("Stopping mail service")
	return s.queue.Stop(ctx)
}
