package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/notify"
	"github.com/hray3182/ledgerline/internal/obligation"
)

// HandleCallbackQuery resolves a Sim/Não answer to a reminder.
func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	messageID, status, ok := notify.ParseCallback(callback.Data)
	if !ok {
		h.answerCallback(callback.ID, "", false)
		return
	}

	res, err := h.deps.Confirmation.Resolve(ctx, callback.From.ID, messageID, status)
	switch {
	case obligation.IsInvalidState(err):
		h.answerCallback(callback.ID, "Este lembrete já foi respondido", true)
		return
	case obligation.IsNotFound(err):
		h.answerCallback(callback.ID, "Lembrete não encontrado", true)
		return
	case err != nil:
		log.Printf("Failed to resolve message %d: %v", messageID, err)
		h.answerCallback(callback.ID, "Falha ao registrar a resposta, tente novamente", true)
		return
	}

	h.answerCallback(callback.ID, "", false)
	if callback.Message != nil {
		h.markAnswered(callback.Message, resolutionText(res))
	}
}

func resolutionText(res *obligation.Resolution) string {
	if res.Message.Status == models.MessageStatusRejected {
		return "❌ Não realizado"
	}
	if res.Parcel == nil {
		return "✅ Confirmado"
	}
	return fmt.Sprintf("✅ Confirmado, parcela %d registrada (%s)", res.Parcel.Count, notify.Money(res.Parcel.Value))
}

// markAnswered appends the outcome to the reminder and drops its keyboard.
// The original entities still apply since the text only grows at the end.
func (h *Handlers) markAnswered(msg *tgbotapi.Message, outcome string) {
	edit := tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, msg.Text+"\n\n"+outcome)
	edit.Entities = msg.Entities
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
}

func (h *Handlers) answerCallback(callbackID, text string, alert bool) {
	answer := tgbotapi.NewCallback(callbackID, text)
	answer.ShowAlert = alert
	if _, err := h.api.Request(answer); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}
}

var statusIcons = map[models.MessageStatus]string{
	models.MessageStatusPending:  "⏳",
	models.MessageStatusAccepted: "✅",
	models.MessageStatusRejected: "❌",
}

// handlePending lists the latest reminders and re-offers the buttons for the
// ones still waiting for an answer.
func (h *Handlers) handlePending(ctx context.Context, msg *tgbotapi.Message) {
	msgs, err := h.deps.Service.RecentMessages(ctx, msg.From.ID)
	if err != nil {
		h.sendMessage(msg.Chat.ID, errorText("listar os lembretes", err))
		return
	}
	if len(msgs) == 0 {
		h.sendMessage(msg.Chat.ID, "🔔 Nenhum lembrete enviado ainda")
		return
	}

	var sb strings.Builder
	sb.WriteString("🔔 **Últimos lembretes**\n\n")
	var pending []*models.NotificationMessage
	for _, m := range msgs {
		fmt.Fprintf(&sb, "%s %s (meta #%d) %s\n",
			statusIcons[m.Status], m.Description, m.NotificationID, m.CreatedAt.In(h.deps.Location).Format(dateLayout))
		if m.Status == models.MessageStatusPending && m.Purpose == models.PurposeConfirm {
			pending = append(pending, m)
		}
	}
	h.sendMessage(msg.Chat.ID, sb.String())

	for _, m := range pending {
		reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("⏳ %s: já foi realizado?", m.Description))
		reply.ReplyMarkup = notify.ConfirmationKeyboard(m.MessageID)
		if _, err := h.api.Send(reply); err != nil {
			log.Printf("Failed to send pending prompt: %v", err)
		}
	}
}
