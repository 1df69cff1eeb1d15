package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/hray3182/ledgerline/internal/bot"
	"github.com/hray3182/ledgerline/internal/bot/handlers"
	"github.com/hray3182/ledgerline/internal/notify"
	"github.com/hray3182/ledgerline/internal/obligation"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	SkipMigrate bool
}

// NewServeCommand creates the serve command: the Telegram bot plus the
// obligation scheduler.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipMigrate, "skip-migrate", false, "do not apply pending migrations on start")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.RequireTelegram(); err != nil {
		return err
	}

	if !opts.SkipMigrate {
		if err := a.db.Migrate(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Println("Database migrations completed")
	}

	api, err := tgbotapi.NewBotAPI(a.cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("create Telegram API: %w", err)
	}

	notifier, err := notify.NewTelegram(api, a.store, a.cfg.ChatCacheSize, a.cfg.Location)
	if err != nil {
		return fmt.Errorf("create notifier: %w", err)
	}
	defer notifier.Close()

	sched := a.engine(notifier)
	go func() {
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Scheduler stopped: %v", err)
		}
	}()
	defer sched.Stop()

	b := bot.New(api, handlers.Deps{
		Users:        a.store,
		Transactions: a.store,
		Service:      obligation.NewService(a.store, a.clock),
		Confirmation: obligation.NewConfirmation(a.store, a.clock),
		Chats:        notifier,
		Scheduler:    sched,
		Clock:        a.clock,
		Location:     a.cfg.Location,
	})

	log.Println("Starting bot...")
	if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot: %w", err)
	}
	log.Println("Shutting down...")
	return nil
}
