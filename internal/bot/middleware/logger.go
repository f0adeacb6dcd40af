// Package middleware holds the operator bot wrappers: message logging,
// panic recovery and per-user rate limiting.
package middleware

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// LogMessage logs an incoming operator message. Text is cut to 64 bytes.
func LogMessage(message *telego.Message) {
	if message == nil || message.From == nil {
		return
	}

	text := message.Text
	if len(text) > 64 {
		text = text[:64] + "..."
	}

	log.WithFields(log.Fields{
		"user_id":  message.From.ID,
		"chat_id":  message.Chat.ID,
		"username": message.From.Username,
		"text":     text,
	}).Debug("operator message")
}
