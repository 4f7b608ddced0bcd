// Package bot implements the chat surface: command decoding, conversation
// state and the handlers that drive allocation, lifecycle and reporting
// from a messaging app. The transport is abstracted behind ChatClient, so
// handlers never touch the messaging SDK.
package bot

import "context"

// Button is one inline keyboard button. Data and URL are mutually
// exclusive: Data produces a callback, URL opens a link.
type Button struct {
	Label string
	Data  string
	URL   string
}

// Message is an outgoing chat message with an optional inline keyboard.
type Message struct {
	ChatID   int64
	Text     string
	Keyboard [][]Button
}

// Document is an outgoing file attachment.
type Document struct {
	ChatID  int64
	Name    string
	Data    []byte
	Caption string
}

// ChatClient sends messages to the chat transport.
type ChatClient interface {
	Send(ctx context.Context, msg Message) error
	SendDocument(ctx context.Context, doc Document) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Update is one incoming chat event, normalized from the transport.
type Update struct {
	ChatID       int64
	UserID       int64
	UserName     string
	Text         string // message text; empty for callbacks
	CallbackID   string // non-empty for callback queries
	CallbackData string
}

// IsCallback reports whether the update is a callback query.
func (u Update) IsCallback() bool {
	return u.CallbackID != ""
}
