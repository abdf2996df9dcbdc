package sender

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

// smtpSendFunc matches smtp.SendMail and is swappable in tests.
type smtpSendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender relays mail through a configured SMTP host. Success means the
// relay accepted the message; there is no provider message id.
type SMTPSender struct {
	cfg      config.SMTPConfig
	sendMail smtpSendFunc
	logger   *slog.Logger
}

// SMTPOptions groups dependencies for SMTPSender.
type SMTPOptions struct {
	Config   config.SMTPConfig
	SendMail smtpSendFunc
}

// NewSMTPSender creates an SMTP relay sender.
func NewSMTPSender(opts SMTPOptions, logger *slog.Logger) *SMTPSender {
	sendMail := opts.SendMail
	if sendMail == nil {
		sendMail = smtp.SendMail
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{
		cfg:      opts.Config,
		sendMail: sendMail,
		logger:   logger.With("component", "smtp_sender"),
	}
}

// Name returns the provider key.
func (s *SMTPSender) Name() string {
	return "smtp"
}

// Send builds the MIME message and hands it to the relay.
func (s *SMTPSender) Send(ctx context.Context, job *model.EmailJob, atts []model.Attachment) (*model.SendResult, error) {
	if s.cfg.Host == "" {
		return nil, apperrors.Config("smtp host is not configured")
	}

	msg, err := buildMIMEMessage(job, atts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "build mime message")
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err = s.sendMail(addr, auth, job.FromAddress, []string{job.Recipient}, msg); err != nil {
		s.logger.ErrorContext(ctx, "smtp relay rejected message", "job_id", job.ID, "err", err)
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "smtp send failed")
	}

	s.logger.InfoContext(ctx, "smtp relay accepted message", "job_id", job.ID, "host", s.cfg.Host)
	return &model.SendResult{}, nil
}
