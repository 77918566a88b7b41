package portfoliofs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(common.NewSilentLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestSaveLoad_RoundTripPreservesOrderAndNulls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	date, _ := common.ParseDate("2023-01-10")

	events := []models.Event{
		{ID: "b", Symbol: "AAPL", Date: date, Kind: models.EventSale, Shares: models.Float(2), Seq: 2},
		{ID: "a", Symbol: "AAPL", Date: date, Kind: models.EventPurchase, Shares: models.Float(10), Price: models.Float(120), Seq: 0},
		{ID: "c", Symbol: "MSFT", Date: date, Kind: models.EventDividend, Amount: models.Float(5), Note: "q1, paid", Seq: 3},
	}
	cash := []models.CashEvent{{ID: "d", Date: date, Kind: models.CashDeposit, Amount: 1000, Seq: 1}}
	require.NoError(t, s.SaveEvents(ctx, "main", events, cash))

	gotEvents, gotCash, err := s.LoadEvents(ctx, "main")
	require.NoError(t, err)
	require.Len(t, gotEvents, 3)
	require.Len(t, gotCash, 1)

	assert.Equal(t, "a", gotEvents[0].ID)
	assert.Equal(t, 0, gotEvents[0].Seq)
	assert.Equal(t, 1, gotCash[0].Seq)
	assert.Equal(t, "b", gotEvents[1].ID)
	assert.Equal(t, 2, gotEvents[1].Seq)
	assert.Nil(t, gotEvents[1].Price, "blank price decodes as nil")
	assert.Nil(t, gotEvents[2].Shares)
	assert.Equal(t, 5.0, *gotEvents[2].Amount)
	assert.Equal(t, "q1, paid", gotEvents[2].Note)
}

func TestLoadEvents_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.LoadEvents(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestLoadEvents_LegacyColumnsAndMissingIDs(t *testing.T) {
	s := newTestStore(t)
	content := strings.Join([]string{
		"row_type,key,value,symbol,date,type,shares,price,amount,note",
		"meta,name,Main,,,,,,,",
		"event,,,aapl,2023-01-10,purchase,10,120,0,",
		"cash,,,,2023-05-10,dividend,0,0,5,DIV:AAPL",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "legacy.csv"), []byte(content), 0644))

	events, cash, err := s.LoadEvents(context.Background(), "legacy")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Len(t, cash, 1)
	assert.Equal(t, "AAPL", events[0].Symbol)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, "AAPL", cash[0].DividendSymbol())
	assert.Equal(t, 5.0, cash[0].Amount)
}

func TestLoadEvents_RejectsUnknownType(t *testing.T) {
	s := newTestStore(t)
	content := "row_type,symbol,date,type,shares,price,amount,note,id\nevent,AAPL,2023-01-10,split,2,,,,x\n"
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "bad.csv"), []byte(content), 0644))
	_, _, err := s.LoadEvents(context.Background(), "bad")
	assert.Error(t, err)
}

func TestListPortfolios_IgnoresTempAndOtherFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, "zeta", nil, nil))
	require.NoError(t, s.SaveEvents(ctx, "alpha", nil, nil))
	os.WriteFile(filepath.Join(s.dir, ".tmp-123"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(s.dir, "notes.txt"), []byte("x"), 0644)

	names, err := s.ListPortfolios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestSaveEvents_InvalidName(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SaveEvents(context.Background(), "../escape", nil, nil))
	assert.Error(t, s.SaveEvents(context.Background(), "", nil, nil))
}

func TestDeletePortfolio(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEvents(ctx, "main", nil, nil))
	_, err := s.ModTime(ctx, "main")
	require.NoError(t, err)
	require.NoError(t, s.DeletePortfolio(ctx, "main"))
	assert.True(t, errors.Is(s.DeletePortfolio(ctx, "main"), models.ErrNotFound))
}
