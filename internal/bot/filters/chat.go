// Package filters decides which Telegram messages reach the operator commands.
package filters

import (
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// ChatFilter lets through admins writing in a private chat or in the operator chat.
type ChatFilter struct {
	operatorChatID int64
	admins         map[int64]struct{}
}

func NewChatFilter(operatorChatID int64, adminIDs []int64) *ChatFilter {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &ChatFilter{operatorChatID: operatorChatID, admins: admins}
}

func (f *ChatFilter) IsAdmin(userID int64) bool {
	_, ok := f.admins[userID]
	return ok
}

func (f *ChatFilter) CheckAccess(message *telego.Message) bool {
	if message == nil {
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("deny: no sender (channel post?)")
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
		"user_id":   message.From.ID,
	})

	if !f.IsAdmin(message.From.ID) {
		logger.Info("deny: not an admin")
		return false
	}
	if message.Chat.Type == telego.ChatTypePrivate {
		return true
	}
	if f.operatorChatID != 0 && message.Chat.ID == f.operatorChatID {
		return true
	}
	logger.Info("deny: admin outside the operator chat")
	return false
}
