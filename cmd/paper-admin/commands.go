package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/paper-trader/internal/app"
	"github.com/trogers1052/paper-trader/internal/config"
	"github.com/trogers1052/paper-trader/internal/kafka"
	"github.com/trogers1052/paper-trader/internal/logging"
	"github.com/trogers1052/paper-trader/internal/models"
)

var commands = []subcommands.Command{
	&migrateCmd{},
	&resetCmd{},
	&snapshotCmd{},
	&transactionsCmd{},
	&quoteCmd{},
	&orderCmd{},
}

// withApp loads configuration, opens the App and runs fn against it
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	logger := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// --- migrateCmd ---

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "applies pending database migrations" }
func (*migrateCmd) Usage() string {
	return `migrate

Applies every embedded schema migration that has not run yet.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		if err := a.DB.Migrate(); err != nil {
			return err
		}
		fmt.Println("Database is up to date")
		return nil
	})
}

// --- resetCmd ---

type resetCmd struct {
	cash string
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "wipes the portfolio and starts over" }
func (*resetCmd) Usage() string {
	return `reset [-cash <amount>]

Deletes every holding, transaction and snapshot and creates a fresh portfolio.
`
}
func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.cash, "cash", "", "Starting cash. Defaults to the configured starting cash.")
}

func (c *resetCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		cash := a.Config.Portfolio.StartingCashAmount()
		if c.cash != "" {
			var err error
			if cash, err = decimal.NewFromString(c.cash); err != nil {
				return fmt.Errorf("invalid -cash %q: %w", c.cash, err)
			}
		}

		res, err := a.Trader.Reset(ctx, cash)
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		return nil
	})
}

// --- snapshotCmd ---

type snapshotCmd struct {
	force bool
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "records one portfolio value snapshot" }
func (*snapshotCmd) Usage() string {
	return `snapshot [-force]

Runs one scheduler tick. Outside market hours nothing is recorded unless -force is set.
`
}
func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "Record even when the market is closed.")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		if !c.force {
			recorded, err := a.Scheduler().Tick(ctx)
			if err != nil {
				return err
			}
			if !recorded {
				fmt.Println("No snapshot recorded: market closed or no portfolio")
			} else {
				fmt.Println("Snapshot recorded")
			}
			return nil
		}

		snap, err := a.Trader.RecordSnapshot(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %s at %s\n", snap.Value.StringFixed(2), snap.Timestamp.In(a.Session.Location()).Format(time.RFC3339))
		return nil
	})
}

// --- transactionsCmd ---

type transactionsCmd struct {
	limit int
}

func (*transactionsCmd) Name() string     { return "transactions" }
func (*transactionsCmd) Synopsis() string { return "lists executed trades, newest first" }
func (*transactionsCmd) Usage() string {
	return `transactions [-limit <n>]

Prints the transaction log and the realized P&L of the listed sells.
`
}
func (c *transactionsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 50, "Maximum number of transactions to show. 0 shows all.")
}

func (c *transactionsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		history, err := a.Trader.ListTransactions(ctx, c.limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSIDE\tTICKER\tQTY\tPRICE\tP&L")
		for _, t := range history.Transactions {
			pnl := "-"
			if t.PnL.Valid {
				pnl = t.PnL.Decimal.StringFixed(2)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				t.Timestamp.In(a.Session.Location()).Format("2006-01-02 15:04:05"),
				t.Side, t.Ticker, t.Quantity, t.Price.StringFixed(2), pnl)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d transactions, realized P&L %s\n", history.Count, history.RealizedPnL.StringFixed(2))
		return nil
	})
}

// --- quoteCmd ---

type quoteCmd struct {
	interval string
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "shows the last close of a ticker" }
func (*quoteCmd) Usage() string {
	return `quote [-interval <bar size>] <ticker>

Fetches 60 days of bars and prints the last close.
`
}
func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.interval, "interval", "1d", "Bar size: 1m, 5m, 15m, 1h, 4h, 1d, 1wk or 1mo.")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one ticker is required.")
		return subcommands.ExitUsageError
	}
	ticker := f.Arg(0)

	return withApp(ctx, func(ctx context.Context, a *app.App) error {
		q, err := a.Trader.Quote(ctx, ticker, c.interval)
		if err != nil {
			return err
		}
		last := q.Bars[len(q.Bars)-1]
		fmt.Printf("%s %s (%d %s bars, last at %s)\n",
			q.Ticker, q.Price.String(), len(q.Bars), q.Interval,
			last.Timestamp.In(a.Session.Location()).Format(time.RFC3339))
		return nil
	})
}

// --- orderCmd ---

type orderCmd struct {
	side     string
	quantity int64
	interval string
	orderID  string
}

func (*orderCmd) Name() string     { return "order" }
func (*orderCmd) Synopsis() string { return "requests an order over Kafka" }
func (*orderCmd) Usage() string {
	return `order -side <buy|sell> -qty <n> [-interval <bar size>] [-id <order id>] <ticker>

Publishes an ORDER_REQUESTED event for the running server to execute.
`
}
func (c *orderCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.side, "side", "buy", "buy or sell.")
	f.Int64Var(&c.quantity, "qty", 0, "Number of shares.")
	f.StringVar(&c.interval, "interval", "", "Bar size used to price a buy.")
	f.StringVar(&c.orderID, "id", "", "Client order id. Generated when empty.")
}

func (c *orderCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 || c.quantity <= 0 {
		fmt.Fprintln(os.Stderr, "Error: a ticker and a positive -qty are required.")
		return subcommands.ExitUsageError
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	if !cfg.Kafka.Enabled {
		fmt.Fprintln(os.Stderr, "Error: kafka is disabled; set KAFKA_ENABLED=true.")
		return subcommands.ExitFailure
	}

	orderID := c.orderID
	if orderID == "" {
		orderID = uuid.NewString()
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic)
	defer producer.Close()

	err = producer.PublishOrderRequested(ctx, "paper-admin", models.OrderData{
		OrderID:  orderID,
		Side:     strings.ToUpper(c.side),
		Ticker:   f.Arg(0),
		Quantity: c.quantity,
		Interval: c.interval,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Requested order %s\n", orderID)
	return subcommands.ExitSuccess
}
