package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hray3182/ledgerline/internal/models"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/hray3182/ledgerline/internal/obligation/memstore"
	"github.com/hray3182/ledgerline/internal/testutil"
)

type fakeSource struct {
	*memstore.Store
	categories []*models.Category
}

func (f fakeSource) Categories(_ context.Context, _ int64) ([]*models.Category, error) {
	return f.categories, nil
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := execute(t, "migrate", "--list", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestMigrateCommand_List(t *testing.T) {
	out, err := execute(t, "migrate", "--list")
	require.NoError(t, err)
	assert.Equal(t, "001_init.sql\n", out)

	out, err = execute(t, "migrate", "--list", "--format", "json")
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"001_init.sql"}, names)
}

func TestProjectCommand_RequiresUser(t *testing.T) {
	_, err := execute(t, "project")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user")
}

func TestProjectOptions_Window(t *testing.T) {
	now := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

	from, to, err := (&ProjectOptions{Days: 30}).window(now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, now, from)
	assert.Equal(t, now.AddDate(0, 0, 30), to)

	from, to, err = (&ProjectOptions{From: "2026-11-01", Until: "2026-11-30"}).window(now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, time.November, 30, 23, 59, 59, 999999999, time.UTC), to)

	for _, opts := range []*ProjectOptions{
		{From: "01/11/2026", Days: 30},
		{Until: "tomorrow"},
		{Until: "2026-10-01"},
		{Days: 0},
	} {
		_, _, err := opts.window(now, time.UTC)
		assert.Error(t, err, "%+v", opts)
	}
}

func TestProject(t *testing.T) {
	const userID int64 = 7
	now := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	store := memstore.New()
	service := obligation.NewService(store, testutil.NewFakeClock(now))
	electronics := 3

	_, err := service.CreateTransaction(ctx, userID, obligation.TransactionInput{
		Type:         models.TransactionTypeExpense,
		Value:        decimal.NewFromInt(100),
		Description:  "Notebook",
		CategoryID:   &electronics,
		Interval:     models.IntervalMonthly,
		PlannedCount: 3,
	})
	require.NoError(t, err)
	_, err = service.CreateTransaction(ctx, userID, obligation.TransactionInput{
		Type:         models.TransactionTypeIncome,
		Value:        decimal.NewFromInt(1000),
		Description:  "Salário",
		Interval:     models.IntervalMonthly,
		PlannedCount: 1,
	})
	require.NoError(t, err)

	src := fakeSource{Store: store, categories: []*models.Category{
		{CategoryID: electronics, UserID: userID, CategoryName: "Eletrônicos"},
	}}
	from := time.Date(2026, time.October, 16, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC)

	res, err := project(ctx, src, userID, from, to, time.UTC)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(1000).Equal(res.Income))
	assert.True(t, decimal.NewFromInt(300).Equal(res.Expense))
	assert.True(t, decimal.NewFromInt(700).Equal(res.Balance))
	assert.Equal(t, 2, res.ProjectedCount)
	require.Len(t, res.ByDay, 3)
	assert.False(t, res.ByDay[0].ProjectedOnly)
	assert.True(t, res.ByDay[1].ProjectedOnly)

	require.Len(t, res.Categories, 2)
	assert.Equal(t, uncategorized, res.Categories[0].Name)
	assert.True(t, decimal.NewFromInt(1000).Equal(res.Categories[0].Income))
	assert.Equal(t, "Eletrônicos", res.Categories[1].Name)
	assert.True(t, decimal.NewFromInt(300).Equal(res.Categories[1].Expense))

	buf := &bytes.Buffer{}
	require.NoError(t, renderProjection(buf, res))
	text := buf.String()
	assert.Contains(t, text, "2026-10-16 ")
	assert.Contains(t, text, "2026-11-16*")
	assert.Contains(t, text, "Eletrônicos")
	assert.Contains(t, text, "2 projected installment(s)")
}

func TestOutput_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	out := &Output{Format: "json", Writer: buf}

	err := out.Write(map[string]int{"parcels": 2}, func(io.Writer) error {
		t.Fatal("text renderer called for json output")
		return nil
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"parcels": 2}`, buf.String())
}
