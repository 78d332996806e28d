package mail

import (
	"crypto/tls"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/frontdesk/pkg/config"
	"github.com/telekom/frontdesk/pkg/metrics"
)

const (
	defaultSenderAddress = "frontdesk@localhost"
	defaultSenderName    = "Frontdesk"
	sendAttempts         = 3
	sendBackoff          = 200 * time.Millisecond
	maxSendBackoff       = 5 * time.Second
)

type Sender interface {
	Send(receivers []string, subject, body string) error
	GetHost() string
	GetPort() int
}

// dialSender is the part of *gomail.Dialer the sender needs.
type dialSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type sender struct {
	dialer  dialSender
	host    string
	port    int
	from    string
	log     *zap.SugaredLogger
	backoff time.Duration
}

// NewSender builds an SMTP sender for the mail section of the server config.
func NewSender(cfg config.Mail, log *zap.SugaredLogger) Sender {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for the mail TLS connection", "host", cfg.Host)
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
	}

	from := cfg.From
	if from == "" {
		from = defaultSenderAddress
	}

	log.Infow("Mail sender initialized", "host", cfg.Host, "port", cfg.Port, "user", cfg.User, "from", from)
	return &sender{
		dialer:  d,
		host:    cfg.Host,
		port:    cfg.Port,
		from:    from,
		log:     log,
		backoff: sendBackoff,
	}
}

func (s *sender) Send(receivers []string, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.from, defaultSenderName)
	msg.SetHeader("Bcc", receivers...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	var err error
	backoff := s.backoff
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err = s.dialer.DialAndSend(msg); err == nil {
			metrics.MailSendSuccess.WithLabelValues(s.host).Inc()
			s.log.Debugw("Mail sent", "receivers", len(receivers), "attempt", attempt)
			return nil
		}
		if attempt == sendAttempts {
			break
		}
		s.log.Debugw("Mail send attempt failed, retrying", "attempt", attempt, "retryIn", backoff, "error", err)
		time.Sleep(backoff)
		backoff = min(backoff*2, maxSendBackoff)
	}

	metrics.MailSendFailure.WithLabelValues(s.host).Inc()
	s.log.Warnw("Failed to send mail", "attempts", sendAttempts, "subject", subject, "error", err)
	return err
}

func (s *sender) GetHost() string {
	return s.host
}

func (s *sender) GetPort() int {
	return s.port
}
