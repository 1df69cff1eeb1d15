package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/projection"
)

const uncategorized = "(sem categoria)"

// ProjectOptions holds flags for the project command.
type ProjectOptions struct {
	*RootOptions
	UserID int64
	From   string
	Until  string
	Days   int
}

// CategoryTotal is one category's share of a projection window.
type CategoryTotal struct {
	Name    string          `json:"name"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// ProjectResult is the projection summary plus a per-category breakdown.
type ProjectResult struct {
	*projection.Summary
	Categories []CategoryTotal `json:"categories"`
}

type projectSource interface {
	ListTransactions(ctx context.Context, userID int64) ([]*models.Transaction, error)
	Categories(ctx context.Context, userID int64) ([]*models.Category, error)
}

// NewProjectCommand creates the project command.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Show recorded and upcoming installments for a user",
		Long: `Sum a user's income and expenses over a window, including the
installments that have not been recorded yet.

Examples:
  ledgerline project --user 12345
  ledgerline project --user 12345 --until 2027-03-31
  ledgerline project --user 12345 --from 2026-11-01 --days 90 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Int64Var(&opts.UserID, "user", 0, "Telegram user id (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.From, "from", "", "window start, YYYY-MM-DD (default now)")
	cmd.Flags().StringVar(&opts.Until, "until", "", "window end, YYYY-MM-DD inclusive")
	cmd.Flags().IntVar(&opts.Days, "days", 30, "window length when --until is not given")

	return cmd
}

// window resolves the flags into [from, to] in loc.
func (o *ProjectOptions) window(now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	from := now
	if o.From != "" {
		d, err := time.ParseInLocation(time.DateOnly, o.From, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: %w", o.From, err)
		}
		from = d
	}

	if o.Until == "" {
		if o.Days <= 0 {
			return time.Time{}, time.Time{}, fmt.Errorf("--days must be positive, got %d", o.Days)
		}
		return from, from.AddDate(0, 0, o.Days), nil
	}

	d, err := time.ParseInLocation(time.DateOnly, o.Until, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --until %q: %w", o.Until, err)
	}
	to := d.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--until %s is before the window start", o.Until)
	}
	return from, to, nil
}

func runProject(ctx context.Context, opts *ProjectOptions, w io.Writer) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	from, to, err := opts.window(a.clock.Now(), a.cfg.Location)
	if err != nil {
		return err
	}

	res, err := project(ctx, a.store, opts.UserID, from, to, a.cfg.Location)
	if err != nil {
		return err
	}

	out := &Output{Format: opts.Format, Writer: w}
	return out.Write(res, func(w io.Writer) error {
		return renderProjection(w, res)
	})
}

func project(ctx context.Context, src projectSource, userID int64, from, to time.Time, loc *time.Location) (*ProjectResult, error) {
	txs, err := src.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	categories, err := src.Categories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	summary, err := projection.Summarize(txs, from, to, loc)
	if err != nil {
		return nil, err
	}

	names := make(map[int]string, len(categories))
	for _, c := range categories {
		names[c.CategoryID] = c.CategoryName
	}
	byName := make(map[string][]*models.Transaction)
	for _, tx := range txs {
		name := uncategorized
		if tx.CategoryID != nil {
			if n, ok := names[*tx.CategoryID]; ok {
				name = n
			}
		}
		byName[name] = append(byName[name], tx)
	}

	res := &ProjectResult{Summary: summary}
	for name, group := range byName {
		s, err := projection.Summarize(group, from, to, loc)
		if err != nil {
			return nil, err
		}
		if s.Income.IsZero() && s.Expense.IsZero() {
			continue
		}
		res.Categories = append(res.Categories, CategoryTotal{Name: name, Income: s.Income, Expense: s.Expense})
	}
	sort.Slice(res.Categories, func(i, j int) bool { return res.Categories[i].Name < res.Categories[j].Name })
	return res, nil
}

func renderProjection(w io.Writer, res *ProjectResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "DATE\tINCOME\tEXPENSE\tBALANCE\t\n")
	for _, day := range res.ByDay {
		mark := ""
		if day.ProjectedOnly {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%s\t\n", day.Date, mark,
			day.Income.StringFixed(2), day.Expense.StringFixed(2), day.Balance.StringFixed(2))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t%s\t%s\t\n",
		res.Income.StringFixed(2), res.Expense.StringFixed(2), res.Balance.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(res.Categories) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "CATEGORY\tINCOME\tEXPENSE\t\n")
		for _, c := range res.Categories {
			fmt.Fprintf(tw, "%s\t%s\t%s\t\n", c.Name, c.Income.StringFixed(2), c.Expense.StringFixed(2))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "\n%d projected installment(s); * marks days with projections only\n", res.ProjectedCount)
	return err
}
