package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"
)

// UpdateFields names the update in panic and error logs.
func UpdateFields(update telego.Update) log.Fields {
	fields := log.Fields{"update_id": update.UpdateID}
	if m := update.Message; m != nil {
		fields["chat_id"] = m.Chat.ID
		if m.From != nil {
			fields["user_id"] = m.From.ID
		}
	}
	return fields
}

// RecoverFromPanic logs a recovered panic with fields attached. It has to be
// deferred directly: defer middleware.RecoverFromPanic(fields).
func RecoverFromPanic(fields log.Fields) {
	r := recover()
	if r == nil {
		return
	}
	log.WithFields(fields).WithFields(log.Fields{
		"component": "panic_recovery",
		"panic":     fmt.Sprint(r),
		"stack":     string(debug.Stack()),
	}).Error("operator command panicked, update dropped")
}
