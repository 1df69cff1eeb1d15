package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/shopspring/decimal"
)

const callbackPrefix = "notif"

// Money renders a value as Brazilian reais, e.g. "R$ 1234,50".
func Money(v decimal.Decimal) string {
	return "R$ " + strings.Replace(v.StringFixed(2), ".", ",", 1)
}

func verb(t models.TransactionType) string {
	if t == models.TransactionTypeIncome {
		return "recebeu"
	}
	return "pagou"
}

func occurrence(n *models.Notification) string {
	if n.PlannedCount <= 1 {
		return ""
	}
	return fmt.Sprintf(" (%d/%d)", n.NotificationTimes+1, n.PlannedCount)
}

// RenderConfirmation asks whether the goal's occurrence happened. Goals
// without a value get the no-price wording.
func RenderConfirmation(n *models.Notification, loc *time.Location) string {
	when := n.NextDueDate.In(loc).Format("02/01/2006")
	if n.Value.IsZero() {
		return fmt.Sprintf("🔔 **Lembrete**%s\n\nVocê já %s **%s**?\n📅 %s",
			occurrence(n), verb(n.Type), n.Description, when)
	}
	return fmt.Sprintf("🔔 **Lembrete**%s\n\nVocê já %s **%s** no valor de %s?\n📅 %s",
		occurrence(n), verb(n.Type), n.Description, Money(n.Value), when)
}

// RenderReminder announces an installment that is being recorded automatically.
func RenderReminder(n *models.Notification, loc *time.Location) string {
	when := n.NextDueDate.In(loc).Format("02/01/2006")
	title := "Parcela registrada"
	if n.Type == models.TransactionTypeIncome {
		title = "Recebimento registrado"
	}
	return fmt.Sprintf("💳 **%s**%s\n\n%s: %s\n📅 %s",
		title, occurrence(n), n.Description, Money(n.Value), when)
}

// ConfirmationKeyboard carries our message id, not Telegram's, so the
// answer can be matched even when the delivery id was never stored.
func ConfirmationKeyboard(messageID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Sim", CallbackData(messageID, models.MessageStatusAccepted)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Não", CallbackData(messageID, models.MessageStatusRejected)),
		),
	)
}

// CallbackData encodes an answer as "notif:accept:<id>" or "notif:reject:<id>".
func CallbackData(messageID int64, status models.MessageStatus) string {
	action := "reject"
	if status == models.MessageStatusAccepted {
		action = "accept"
	}
	return fmt.Sprintf("%s:%s:%d", callbackPrefix, action, messageID)
}

// ParseCallback decodes CallbackData. ok is false for any other payload.
func ParseCallback(data string) (messageID int64, status models.MessageStatus, ok bool) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != callbackPrefix {
		return 0, "", false
	}
	switch parts[1] {
	case "accept":
		status = models.MessageStatusAccepted
	case "reject":
		status = models.MessageStatusRejected
	default:
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, status, true
}
