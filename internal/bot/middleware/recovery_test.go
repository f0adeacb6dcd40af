package middleware

import (
	"testing"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestRecoverFromPanic_LogsUpdate(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	update := telego.Update{UpdateID: 77, Message: &telego.Message{
		Chat: telego.Chat{ID: -100},
		From: &telego.User{ID: 42},
	}}

	func() {
		defer RecoverFromPanic(UpdateFields(update))
		panic("nil round")
	}()

	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.ErrorLevel {
		t.Fatalf("entry=%v", entry)
	}
	if entry.Data["update_id"] != 77 || entry.Data["user_id"] != int64(42) || entry.Data["chat_id"] != int64(-100) {
		t.Fatalf("fields=%v", entry.Data)
	}
	if entry.Data["panic"] != "nil round" {
		t.Fatalf("panic=%v", entry.Data["panic"])
	}
}

func TestRecoverFromPanic_NoPanic(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	func() {
		defer RecoverFromPanic(UpdateFields(telego.Update{UpdateID: 1}))
	}()
	if len(hook.AllEntries()) != 0 {
		t.Fatalf("entries=%v", hook.AllEntries())
	}
}
