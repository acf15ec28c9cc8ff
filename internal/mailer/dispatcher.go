package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"
)

const (
	// StatusSent marks a message accepted by the SMTP transport.
	StatusSent = "sent"
	// StatusFallback marks a message written to the local outbox because
	// sending is disabled.
	StatusFallback = "fallback"
	// StatusFailed marks a dispatch attempt that produced no delivery.
	StatusFailed = "failed"

	defaultSendTimeout  = 20 * time.Second
	outboxFileExtension = ".eml"
	outboxFileHashSize  = 16

	contentTypeTextPlain = "text/plain"
	contentTypeTextHTML  = "text/html"

	headerFrom    = "From"
	headerTo      = "To"
	headerSubject = "Subject"

	logEventOutboxWrite        = "outbox_write"
	logEventDispatchSendFailed = "email_send_failed"
	logFieldOutboxPath         = "path"
	logFieldRecipient          = "recipient"

	errorValueNotConfigured = "smtp not configured (host/port missing)"
	errorValueSendTimeout   = "smtp send timed out"
)

// Config captures outbound email configuration. It is passed in explicitly at
// construction rather than read from ambient state.
type Config struct {
	Enabled         bool
	Host            string
	Port            int
	Username        string
	Password        string
	StartTLS        bool
	From            string
	OutboxDirectory string
	SendTimeout     time.Duration
}

// Outcome is the terminal result of one dispatch attempt. Dispatch never
// returns an error: transport failures are folded into a failed outcome so
// the caller can log and continue.
type Outcome struct {
	Status            string
	ProviderMessageID string
	Error             string
}

// Dispatcher delivers rendered emails over SMTP, or drops them into the
// fallback outbox when sending is disabled.
type Dispatcher struct {
	configuration Config
	logger        *zap.Logger
}

// NewDispatcher builds a Dispatcher with the provided configuration.
func NewDispatcher(configuration Config, logger *zap.Logger) *Dispatcher {
	if configuration.SendTimeout <= 0 {
		configuration.SendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		configuration: configuration,
		logger:        logger,
	}
}

// Dispatch attempts delivery of the rendered email to the recipient. The
// reference names the ticket the message belongs to and keys the fallback
// filename. Exactly one terminal outcome is returned per call.
func (dispatcher *Dispatcher) Dispatch(ctx context.Context, recipient string, reference string, email RenderedEmail) Outcome {
	message := dispatcher.buildMessage(recipient, email)

	if !dispatcher.configuration.Enabled {
		return dispatcher.writeFallback(message, reference, email)
	}

	if strings.TrimSpace(dispatcher.configuration.Host) == "" || dispatcher.configuration.Port <= 0 {
		return Outcome{Status: StatusFailed, Error: errorValueNotConfigured}
	}

	if sendErr := dispatcher.sendWithTimeout(ctx, message); sendErr != nil {
		dispatcher.logger.Warn(logEventDispatchSendFailed,
			zap.Error(sendErr),
			zap.String(logFieldRecipient, recipient),
		)
		return Outcome{Status: StatusFailed, Error: sendErr.Error()}
	}

	// Plain SMTP reports acceptance only, never a provider message id.
	return Outcome{Status: StatusSent}
}

func (dispatcher *Dispatcher) buildMessage(recipient string, email RenderedEmail) *gomail.Message {
	message := gomail.NewMessage()
	message.SetHeader(headerFrom, dispatcher.configuration.From)
	message.SetHeader(headerTo, recipient)
	message.SetHeader(headerSubject, email.Subject)
	message.SetBody(contentTypeTextPlain, email.TextBody)
	message.AddAlternative(contentTypeTextHTML, email.HTMLBody)
	return message
}

func (dispatcher *Dispatcher) sendWithTimeout(ctx context.Context, message *gomail.Message) error {
	dialer := gomail.NewDialer(
		dispatcher.configuration.Host,
		dispatcher.configuration.Port,
		dispatcher.configuration.Username,
		dispatcher.configuration.Password,
	)
	if dispatcher.configuration.StartTLS {
		dialer.TLSConfig = &tls.Config{ServerName: dispatcher.configuration.Host}
	}

	// gomail exposes no context hooks, so the send runs in its own goroutine
	// and the result is abandoned on timeout.
	sendResult := make(chan error, 1)
	go func() {
		sendResult <- dialer.DialAndSend(message)
	}()

	timer := time.NewTimer(dispatcher.configuration.SendTimeout)
	defer timer.Stop()

	select {
	case sendErr := <-sendResult:
		return sendErr
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%s after %s", errorValueSendTimeout, dispatcher.configuration.SendTimeout)
	}
}

func (dispatcher *Dispatcher) writeFallback(message *gomail.Message, reference string, email RenderedEmail) Outcome {
	outboxPath, writeErr := dispatcher.writeOutboxFile(message, reference, email)
	if writeErr != nil {
		return Outcome{Status: StatusFailed, Error: writeErr.Error()}
	}
	dispatcher.logger.Info(logEventOutboxWrite, zap.String(logFieldOutboxPath, outboxPath))
	return Outcome{Status: StatusFallback}
}

func (dispatcher *Dispatcher) writeOutboxFile(message *gomail.Message, reference string, email RenderedEmail) (string, error) {
	if mkdirErr := os.MkdirAll(dispatcher.configuration.OutboxDirectory, 0o755); mkdirErr != nil {
		return "", fmt.Errorf("create outbox directory: %w", mkdirErr)
	}

	outboxPath := filepath.Join(dispatcher.configuration.OutboxDirectory, outboxFileName(reference, email.PayloadHash))
	outboxFile, createErr := os.Create(outboxPath)
	if createErr != nil {
		return "", fmt.Errorf("create outbox file: %w", createErr)
	}
	defer func() {
		_ = outboxFile.Close()
	}()

	if _, writeErr := message.WriteTo(outboxFile); writeErr != nil {
		return "", fmt.Errorf("write outbox file: %w", writeErr)
	}
	return outboxPath, nil
}

// outboxFileName derives a collision-resistant, content-addressed filename so
// concurrent writers need no locking.
func outboxFileName(reference string, payloadHash string) string {
	hashPart := payloadHash
	if len(hashPart) > outboxFileHashSize {
		hashPart = hashPart[:outboxFileHashSize]
	}
	trimmedReference := strings.TrimSpace(reference)
	if trimmedReference == "" {
		return hashPart + outboxFileExtension
	}
	return trimmedReference + "-" + hashPart + outboxFileExtension
}
