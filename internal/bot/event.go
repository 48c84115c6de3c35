// Package bot implements the dialog controller: it interprets inbound chat
// events against the fixed menu tree, writes through the store and emits
// outbound messages. It knows nothing about the wire transport; adapters
// convert transport updates into Event values and implement Sender.
package bot

import "context"

// Event is one inbound chat message as seen by the controller.
type Event struct {
	UpdateID  int
	MessageID int
	ChatID    int64

	SenderID  int64
	Username  string
	FirstName string
	LastName  string

	Text        string
	Command     string // command name without the leading slash, "" if none
	CommandArgs string // text after the command, trimmed

	ReplyToMessageID int // 0 when the message is not a reply
}

// IsReply reports whether the event replies to an earlier message.
func (e Event) IsReply() bool { return e.ReplyToMessageID != 0 }

// Keyboard is a reply keyboard: rows of button labels. The controller treats
// it as an opaque attachment; the transport adapter renders it.
type Keyboard struct {
	Rows [][]string
}

// Sender delivers a text message (optionally with a keyboard) and returns the
// transport-assigned message id.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, kb *Keyboard) (int, error)
}
