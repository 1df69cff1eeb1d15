package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hray3182/ledgerline/internal/format"
	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
)

// API is the part of tgbotapi.BotAPI the handlers talk to.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Users interface {
	GetOrCreate(ctx context.Context, userID int64, userName string, chatID int64) (*models.User, error)
}

type TransactionLister interface {
	ListTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error)
}

// ChatCache drops a cached user -> chat mapping.
type ChatCache interface {
	Forget(userID int64)
}

// Waker asks the scheduler for an immediate pass.
type Waker interface {
	Notify()
}

type Deps struct {
	Users        Users
	Transactions TransactionLister
	Service      *obligation.Service
	Confirmation *obligation.Confirmation
	Chats        ChatCache // optional
	Scheduler    Waker     // optional
	Clock        obligation.Clock
	Location     *time.Location
}

type Handlers struct {
	api  API
	deps Deps
}

func New(api API, deps Deps) *Handlers {
	if deps.Clock == nil {
		deps.Clock = obligation.SystemClock{}
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Handlers{api: api, deps: deps}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}

	// Ensure user exists
	if _, err := h.deps.Users.GetOrCreate(ctx, msg.From.ID, msg.From.UserName, msg.Chat.ID); err != nil {
		log.Printf("Failed to get/create user: %v", err)
		return
	}

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help", "ajuda":
		h.handleHelp(ctx, msg)
	case "gasto":
		h.handleTransaction(ctx, msg, models.TransactionTypeExpense)
	case "ganho":
		h.handleTransaction(ctx, msg, models.TransactionTypeIncome)
	case "meta":
		h.handleGoal(ctx, msg)
	case "saldo":
		h.handleBalance(ctx, msg)
	case "previsao":
		h.handleForecast(ctx, msg)
	case "pendentes":
		h.handlePending(ctx, msg)
	case "pausar":
		h.handleToggle(ctx, msg)
	case "apagar":
		h.handleDeleteTransaction(ctx, msg)
	case "apagarmeta":
		h.handleDeleteGoal(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "Comando desconhecido, use /help para ver os comandos disponíveis")
	}
}

// wake runs a scheduler pass so obligations created already due go out now.
func (h *Handlers) wake() {
	if h.deps.Scheduler != nil {
		h.deps.Scheduler.Notify()
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

// errorText turns an engine error into something the user can act on.
func errorText(action string, err error) string {
	var e *obligation.Error
	if errors.As(err, &e) {
		switch e.Code {
		case obligation.CodeValidation:
			return fmt.Sprintf("❌ Não foi possível %s: %s", action, e.Message)
		case obligation.CodeNotFound:
			return "❌ Registro não encontrado"
		case obligation.CodeInvalidState:
			return "❌ Este registro já foi concluído"
		}
	}
	log.Printf("Failed to %s: %v", action, err)
	return fmt.Sprintf("❌ Falha ao %s, tente novamente mais tarde", action)
}

func (h *Handlers) handleStart(_ context.Context, msg *tgbotapi.Message) {
	if h.deps.Chats != nil {
		h.deps.Chats.Forget(msg.From.ID)
	}

	text := fmt.Sprintf(`👋 Olá %s!

Eu acompanho seus gastos e ganhos recorrentes e te lembro de cada parcela.

Use /help para ver os comandos.`, msg.From.FirstName)
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(_ context.Context, msg *tgbotapi.Message) {
	text := `📖 **Comandos**

**Lançamentos**
/gasto <valor> [12x] [mensal] [dd/mm/aaaa] <descrição>
/ganho <valor> [12x] [mensal] [dd/mm/aaaa] <descrição>
/apagar <id> - apaga um lançamento e suas parcelas

**Metas**
/meta <valor> <dd/mm/aaaa> [12x] [mensal] <descrição>
/pausar <id> - pausa ou reativa uma meta
/apagarmeta <id> - apaga uma meta

**Consultas**
/saldo - saldo das parcelas registradas
/previsao [dd/mm/aaaa] - entradas e saídas previstas
/pendentes - últimos lembretes enviados

Intervalos: diario, semanal, mensal, anual`
	h.sendMessage(msg.Chat.ID, text)
}
