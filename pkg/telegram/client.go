// Package telegram adapts the Telegram Bot API to the chat-agnostic
// interfaces the dispatcher consumes.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jordanlanch/salesbot/pkg/bot"
	"github.com/jordanlanch/salesbot/pkg/logger"
)

// Client wraps the Telegram API behind bot.ChatClient.
type Client struct {
	api *tgbotapi.BotAPI
	log logger.Logger
}

// NewClient authenticates against the Telegram API.
func NewClient(token string, log logger.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	log.Info("telegram bot authenticated", "username", api.Self.UserName)
	return &Client{api: api, log: log}, nil
}

func keyboardFor(rows [][]bot.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	var markup [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var line []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			if b.URL != "" {
				line = append(line, tgbotapi.NewInlineKeyboardButtonURL(b.Label, b.URL))
				continue
			}
			line = append(line, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		markup = append(markup, line)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(markup...)
	return &kb
}

// Send delivers a text message, with an inline keyboard when present.
func (c *Client) Send(_ context.Context, msg bot.Message) error {
	out := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if kb := keyboardFor(msg.Keyboard); kb != nil {
		out.ReplyMarkup = kb
	}
	if _, err := c.api.Send(out); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// SendDocument uploads a file from memory.
func (c *Client) SendDocument(_ context.Context, doc bot.Document) error {
	out := tgbotapi.NewDocument(doc.ChatID, tgbotapi.FileBytes{
		Name:  doc.Name,
		Bytes: doc.Data,
	})
	out.Caption = doc.Caption
	if _, err := c.api.Send(out); err != nil {
		return fmt.Errorf("failed to send telegram document: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges an inline button press.
func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// Updates converts the long-polling stream into dispatcher updates,
// dropping update types the bot does not handle. It returns when ctx is
// canceled.
func (c *Client) Updates(ctx context.Context, handle func(context.Context, bot.Update)) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := c.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			return
		case raw, ok := <-updates:
			if !ok {
				return
			}
			upd, usable := normalize(raw)
			if !usable {
				continue
			}
			handle(ctx, upd)
		}
	}
}

func normalize(raw tgbotapi.Update) (bot.Update, bool) {
	switch {
	case raw.CallbackQuery != nil && raw.CallbackQuery.Message != nil:
		cb := raw.CallbackQuery
		return bot.Update{
			ChatID:       cb.Message.Chat.ID,
			UserID:       cb.From.ID,
			UserName:     cb.From.UserName,
			CallbackID:   cb.ID,
			CallbackData: cb.Data,
		}, true
	case raw.Message != nil && raw.Message.From != nil:
		m := raw.Message
		return bot.Update{
			ChatID:   m.Chat.ID,
			UserID:   m.From.ID,
			UserName: m.From.UserName,
			Text:     m.Text,
		}, true
	}
	return bot.Update{}, false
}
