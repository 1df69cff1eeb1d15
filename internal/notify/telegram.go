// Package notify delivers obligation reminders over Telegram.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/ledgerline/internal/format"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// UserLookup resolves a user's chat.
type UserLookup interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

// Telegram implements obligation.Notifier. Chat ids are cached per user.
type Telegram struct {
	api   Sender
	users UserLookup
	chats *ristretto.Cache[int64, int64]
	loc   *time.Location
}

var _ obligation.Notifier = (*Telegram)(nil)

func NewTelegram(api Sender, users UserLookup, cacheSize int64, loc *time.Location) (*Telegram, error) {
	if cacheSize <= 0 {
		cacheSize = 10000
	}
	if loc == nil {
		loc = time.UTC
	}
	chats, err := ristretto.NewCache(&ristretto.Config[int64, int64]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat cache: %w", err)
	}
	return &Telegram{api: api, users: users, chats: chats, loc: loc}, nil
}

func (t *Telegram) Close() {
	t.chats.Close()
}

// Forget drops the cached chat of userID, e.g. after the user moved chats.
func (t *Telegram) Forget(userID int64) {
	t.chats.Del(userID)
}

func (t *Telegram) chatID(ctx context.Context, userID int64) (int64, error) {
	if id, ok := t.chats.Get(userID); ok {
		return id, nil
	}
	user, err := t.users.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user.ChatID == 0 {
		return 0, fmt.Errorf("user %d has no chat", userID)
	}
	t.chats.Set(userID, user.ChatID, 1)
	t.chats.Wait()
	return user.ChatID, nil
}

func (t *Telegram) SendReminder(ctx context.Context, d obligation.Delivery) (string, error) {
	return t.send(ctx, d.UserID, RenderReminder(d.Notification, t.loc), nil)
}

func (t *Telegram) SendConfirmationPrompt(ctx context.Context, d obligation.Delivery) (string, error) {
	keyboard := ConfirmationKeyboard(d.Message.MessageID)
	return t.send(ctx, d.UserID, RenderConfirmation(d.Notification, t.loc), &keyboard)
}

func (t *Telegram) send(ctx context.Context, userID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (string, error) {
	chatID, err := t.chatID(ctx, userID)
	if err != nil {
		return "", err
	}

	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		return "", err
	}
	return ExternalID(chatID, sent.MessageID), nil
}

// ExternalID identifies a Telegram message globally; message ids are only
// unique within a chat.
func ExternalID(chatID int64, messageID int) string {
	return strconv.FormatInt(chatID, 10) + "/" + strconv.Itoa(messageID)
}
