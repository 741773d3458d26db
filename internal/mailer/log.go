package mailer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/connectauth"
)

// LogMailer writes emails to the log instead of sending them. The text body is
// logged at debug level only, because it carries live tokens.
type LogMailer struct {
	logger zerolog.Logger
}

func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With().Str("component", "mailer").Logger()}
}

var _ connectauth.Mailer = (*LogMailer)(nil)

func (m *LogMailer) Send(_ context.Context, email connectauth.Email) error {
	m.logger.Info().Str("to", email.To).Str("subject", email.Subject).Msg("email suppressed")
	m.logger.Debug().Str("to", email.To).Str("body", email.Text).Msg("email body")
	return nil
}
