package cli

import (
	"context"
	"fmt"
	"io"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/hray3182/ledgerline/internal/notify"
	"github.com/hray3182/ledgerline/internal/obligation"
)

// TickOptions holds flags for the tick command.
type TickOptions struct {
	*RootOptions
	Silent bool
}

// NewTickCommand creates the tick command: a single scheduler pass, useful
// from an external cron or to catch up after downtime.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TickOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scan-and-advance pass and exit",
		Long: `Run one scan-and-advance pass and exit.

Due reminders are recorded and delivered over Telegram. With --silent, or
when TELEGRAM_TOKEN is unset, they are only recorded.

Examples:
  ledgerline tick
  ledgerline tick --silent --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTick(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.Silent, "silent", false, "record due reminders without delivering them")

	return cmd
}

func runTick(ctx context.Context, opts *TickOptions, w io.Writer) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var notifier obligation.Notifier
	if !opts.Silent && a.cfg.RequireTelegram() == nil {
		api, err := tgbotapi.NewBotAPI(a.cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create Telegram API: %w", err)
		}
		tg, err := notify.NewTelegram(api, a.store, a.cfg.ChatCacheSize, a.cfg.Location)
		if err != nil {
			return fmt.Errorf("create notifier: %w", err)
		}
		defer tg.Close()
		notifier = tg
	} else {
		log.Println("Delivery disabled, reminders are recorded only")
	}

	sched := a.engine(notifier)
	report, err := sched.Tick(ctx)
	if err != nil {
		return fmt.Errorf("tick %s: %w", report.RunID, err)
	}

	out := &Output{Format: opts.Format, Writer: w}
	return out.Write(report, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "tick %s at %s: %s\n", report.RunID, report.At.In(a.cfg.Location).Format("2006-01-02 15:04"), report)
		return err
	})
}
