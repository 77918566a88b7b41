package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/bobmcallan/folio/internal/app"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/models"
)

// optionalFloat parses an optional numeric flag; blank means unset.
func optionalFloat(name, s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s %q: %w", name, s, err)
	}
	return &v, nil
}

type addCmd struct {
	portfolio string
	symbol    string
	date      string
	kind      string
	shares    string
	price     string
	amount    string
	note      string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a purchase, sale or dividend event" }
func (*addCmd) Usage() string {
	return `folio add -p <portfolio> -s <symbol> -t <purchase|sale|dividend> [-d <date>] [-shares N] [-price P] [-amount A] [-note text]

  Appends an event to the portfolio file and marks the holding dirty. The
  running engine picks the change up within seconds.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "main", "Portfolio name")
	f.StringVar(&c.symbol, "s", "", "Symbol")
	f.StringVar(&c.date, "d", "", "Event date YYYY-MM-DD (defaults to today)")
	f.StringVar(&c.kind, "t", "purchase", "Event type: purchase, sale or dividend")
	f.StringVar(&c.shares, "shares", "", "Number of shares")
	f.StringVar(&c.price, "price", "", "Price per share")
	f.StringVar(&c.amount, "amount", "", "Total amount (dividends, or purchases without a unit price)")
	f.StringVar(&c.note, "note", "", "Free text note")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		fmt.Fprintln(os.Stderr, "a symbol is required (-s)")
		return subcommands.ExitUsageError
	}
	date, err := parseDateFlag(c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	event := models.Event{Symbol: c.symbol, Date: date, Kind: models.EventKind(c.kind), Note: c.note}
	if event.Shares, err = optionalFloat("shares", c.shares); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if event.Price, err = optionalFloat("price", c.price); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if event.Amount, err = optionalFloat("amount", c.amount); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	added, err := a.PortfolioService.AddEvent(ctx, c.portfolio, event)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s %s %s on %s (id %s)\n", c.portfolio, added.Kind, added.Symbol, common.FormatDate(added.Date), added.ID)
	return subcommands.ExitSuccess
}

type cashCmd struct {
	portfolio string
	date      string
	kind      string
	amount    float64
	note      string
}

func (*cashCmd) Name() string     { return "cash" }
func (*cashCmd) Synopsis() string { return "record a cash deposit, withdrawal or cash dividend" }
func (*cashCmd) Usage() string {
	return `folio cash -p <portfolio> -t <cash_deposit|cash_withdrawal|dividend> -amount A [-d <date>] [-note text]

  A cash dividend whose note starts with DIV:<SYMBOL> is attributed to that
  holding and replaces the provider's dividend for the same day.
`
}

func (c *cashCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "main", "Portfolio name")
	f.StringVar(&c.date, "d", "", "Event date YYYY-MM-DD (defaults to today)")
	f.StringVar(&c.kind, "t", string(models.CashDeposit), "Cash event type")
	f.Float64Var(&c.amount, "amount", 0, "Amount, always positive")
	f.StringVar(&c.note, "note", "", "Free text note, DIV:<SYMBOL> attributes a dividend")
}

func (c *cashCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	date, err := parseDateFlag(c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	added, err := a.PortfolioService.AddCashEvent(ctx, c.portfolio, models.CashEvent{
		Date:   date,
		Kind:   models.CashKind(c.kind),
		Amount: c.amount,
		Note:   c.note,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s %s %.2f on %s (id %s)\n", c.portfolio, added.Kind, added.Amount, common.FormatDate(added.Date), added.ID)
	return subcommands.ExitSuccess
}

type importCmd struct {
	portfolio string
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import events from a JSON file" }
func (*importCmd) Usage() string {
	return `folio import -p <portfolio> <events.json>

  The file holds {"events": [...], "cash": [...]}. Entries whose id already
  exists in the portfolio are skipped, so importing twice is harmless.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.portfolio, "p", "main", "Portfolio name")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	imported, skipped, err := app.ImportEventsFromFile(ctx, a.PortfolioService, a.Logger, c.portfolio, f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("imported %d event(s), skipped %d\n", imported, skipped)
	return subcommands.ExitSuccess
}

func parseDateFlag(s string) (date time.Time, err error) {
	if s == "" {
		return common.Today(), nil
	}
	if date, err = common.ParseDate(s); err != nil {
		return date, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return date, nil
}
