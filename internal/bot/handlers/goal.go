package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/notify"
	"github.com/hray3182/ledgerline/internal/obligation"
)

func (h *Handlers) handleGoal(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		h.sendMessage(msg.Chat.ID, "Informe valor, data e descrição\nUso: /meta <valor> <dd/mm/aaaa> [12x] [mensal] <descrição>\nExemplo: /meta 250 05/11/2026 12x Academia")
		return
	}

	e, err := parseEntry(args, true, h.deps.Location)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}

	n, err := h.deps.Service.CreateFutureGoal(ctx, msg.From.ID, obligation.GoalInput{
		Type:          models.TransactionTypeExpense,
		Value:         e.Value,
		Description:   e.Description,
		Interval:      e.Interval,
		PlannedCount:  e.Count,
		ReferenceDate: *e.Date,
	})
	if err != nil {
		h.sendMessage(msg.Chat.ID, errorText("criar a meta", err))
		return
	}

	text := fmt.Sprintf("🎯 **Meta criada** (#%d)\n\n%s: %s\n📅 Primeiro lembrete: %s",
		n.NotificationID, n.Description, notify.Money(n.Value), n.NextDueDate.In(h.deps.Location).Format(dateLayout))
	if n.PlannedCount > 1 {
		text += fmt.Sprintf("\n🔁 %dx, %s", n.PlannedCount, intervalName(n.Interval))
	}
	h.sendMessage(msg.Chat.ID, text)
	h.wake()
}

func (h *Handlers) handleToggle(ctx context.Context, msg *tgbotapi.Message) {
	id, ok := parseID(msg.CommandArguments())
	if !ok {
		h.sendMessage(msg.Chat.ID, "Uso: /pausar <id>")
		return
	}

	n, err := h.deps.Service.ToggleNotification(ctx, msg.From.ID, id)
	if err != nil {
		h.sendMessage(msg.Chat.ID, errorText("pausar a meta", err))
		return
	}

	if n.Active {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("▶️ Meta #%d reativada", id))
		h.wake()
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("⏸ Meta #%d pausada", id))
}

func (h *Handlers) handleDeleteGoal(ctx context.Context, msg *tgbotapi.Message) {
	id, ok := parseID(msg.CommandArguments())
	if !ok {
		h.sendMessage(msg.Chat.ID, "Uso: /apagarmeta <id>")
		return
	}

	if err := h.deps.Service.DeleteNotification(ctx, msg.From.ID, id); err != nil {
		h.sendMessage(msg.Chat.ID, errorText("apagar a meta", err))
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Meta #%d apagada", id))
}
