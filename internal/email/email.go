package email

import (
	"go.uber.org/zap"
)

type Email interface {
	Send(subject, text, html string, recipients []string) error
}

// SendAsync sends in the background so request handlers never wait on the
// provider. Failures are only logged.
func SendAsync(e Email, logger *zap.Logger, msg *Message, recipients ...string) {
	if e == nil || msg == nil || len(recipients) == 0 {
		return
	}
	go func() {
		if err := e.Send(msg.Subject, msg.Text, msg.HTML, recipients); err != nil {
			logger.Error("failed to send email",
				zap.String("subject", msg.Subject),
				zap.Int("recipients", len(recipients)),
				zap.Error(err),
			)
		}
	}()
}
