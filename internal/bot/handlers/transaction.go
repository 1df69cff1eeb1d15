package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/notify"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/hray3182/ledgerline/internal/projection"
)

const forecastDays = 30

func (h *Handlers) handleTransaction(ctx context.Context, msg *tgbotapi.Message, txType models.TransactionType) {
	cmd := "gasto"
	if txType == models.TransactionTypeIncome {
		cmd = "ganho"
	}

	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("Informe o valor e a descrição\nUso: /%s <valor> [12x] [mensal] [dd/mm/aaaa] <descrição>\nExemplo: /%s 100 12x Notebook", cmd, cmd))
		return
	}

	e, err := parseEntry(args, false, h.deps.Location)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "❌ "+err.Error())
		return
	}

	tx, err := h.deps.Service.CreateTransaction(ctx, msg.From.ID, obligation.TransactionInput{
		Type:         txType,
		Value:        e.Value,
		Description:  e.Description,
		Interval:     e.Interval,
		PlannedCount: e.Count,
		FirstDate:    e.Date,
	})
	if err != nil {
		h.sendMessage(msg.Chat.ID, errorText("registrar o "+cmd, err))
		return
	}

	h.sendMessage(msg.Chat.ID, transactionText(tx, h.deps.Location))
	h.wake()
}

func transactionText(tx *models.Transaction, loc *time.Location) string {
	icon := "💸"
	if tx.Type == models.TransactionTypeIncome {
		icon = "💰"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s **Registrado** (#%d)\n\n%s: %s", icon, tx.TransactionID, tx.Description, notify.Money(tx.Value))
	if tx.PlannedCount > 1 {
		fmt.Fprintf(&sb, "\n🔁 %dx, %s", tx.PlannedCount, intervalName(tx.Interval))
	}
	if tx.Active && tx.Remaining() > 0 {
		fmt.Fprintf(&sb, "\n📅 Próxima parcela: %s", tx.NextDueDate.In(loc).Format(dateLayout))
	}
	return sb.String()
}

func intervalName(k models.IntervalKind) string {
	switch k {
	case models.IntervalDaily:
		return "diário"
	case models.IntervalWeekly:
		return "semanal"
	case models.IntervalMonthly:
		return "mensal"
	case models.IntervalYearly:
		return "anual"
	default:
		return string(k)
	}
}

func (h *Handlers) handleBalance(ctx context.Context, msg *tgbotapi.Message) {
	balance, err := h.deps.Service.Balance(ctx, msg.From.ID)
	if err != nil {
		h.sendMessage(msg.Chat.ID, errorText("calcular o saldo", err))
		return
	}

	icon := "📈"
	if balance.IsNegative() {
		icon = "📉"
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("%s **Saldo**: %s", icon, notify.Money(balance)))
}

// handleForecast sums what is due from now until the given date, projected
// installments included.
func (h *Handlers) handleForecast(ctx context.Context, msg *tgbotapi.Message) {
	now := h.deps.Clock.Now()
	until := now.AddDate(0, 0, forecastDays)
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		d, ok := parseDate(args, h.deps.Location)
		if !ok || !d.After(now) {
			h.sendMessage(msg.Chat.ID, "❌ Informe uma data futura no formato dd/mm/aaaa")
			return
		}
		until = d.Add(24*time.Hour - time.Nanosecond)
	}

	txs, err := h.deps.Transactions.ListTransactions(ctx, msg.From.ID)
	if err != nil {
		h.sendMessage(msg.Chat.ID, errorText("calcular a previsão", err))
		return
	}
	summary, err := projection.Summarize(txs, now, until, h.deps.Location)
	if err != nil {
		h.sendMessage(msg.Chat.ID, errorText("calcular a previsão", err))
		return
	}

	h.sendMessage(msg.Chat.ID, forecastText(summary, h.deps.Location))
}

func forecastText(s *projection.Summary, loc *time.Location) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🔮 **Previsão até %s**\n\n", s.To.In(loc).Format(dateLayout))
	fmt.Fprintf(&sb, "💰 Entradas: %s\n", notify.Money(s.Income))
	fmt.Fprintf(&sb, "💸 Saídas: %s\n", notify.Money(s.Expense))
	fmt.Fprintf(&sb, "📊 Saldo: %s", notify.Money(s.Balance))
	if s.ProjectedCount > 0 {
		fmt.Fprintf(&sb, "\n\n%d parcela(s) ainda não registrada(s)", s.ProjectedCount)
	}
	return sb.String()
}

func (h *Handlers) handleDeleteTransaction(ctx context.Context, msg *tgbotapi.Message) {
	id, ok := parseID(msg.CommandArguments())
	if !ok {
		h.sendMessage(msg.Chat.ID, "Uso: /apagar <id>")
		return
	}

	if err := h.deps.Service.DeleteTransaction(ctx, msg.From.ID, id); err != nil {
		h.sendMessage(msg.Chat.ID, errorText("apagar o lançamento", err))
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Lançamento #%d apagado", id))
}
