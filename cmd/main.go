package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"gorm.io/gorm"

	"optionsledger/src/connectors"
	"optionsledger/src/database"
	"optionsledger/src/kpi"
	"optionsledger/src/ledger"
	"optionsledger/src/quotes"
	"optionsledger/src/repository"
	"optionsledger/src/server"
)

var Version string

func main() {
	_ = godotenv.Load()
	dbCfg := database.GetConfig()
	server.SetupLogger(dbCfg.LogLevel, dbCfg.LogFormat)

	app := cli.NewApp()
	app.Name = "ledger"
	app.Usage = "The options ledger command line interface"
	app.Version = Version

	app.Commands = []cli.Command{
		migrateCMD,
		importCMD,
		exportCMD,
		reportCMD,
		quotesCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	migrateCMD = cli.Command{
		Name:        "migrate",
		Usage:       "create tables and run data migrations",
		Action:      migrateAction,
		Description: `Run schema and data migrations against the main database`,
	}
	importCMD = cli.Command{
		Name:        "import",
		Usage:       "import trades from a CSV file",
		Action:      importAction,
		ArgsUsage:   "<file.csv>",
		Description: `Every row is validated first; one bad row rejects the whole file`,
	}
	exportCMD = cli.Command{
		Name:      "export",
		Usage:     "export every trade as CSV",
		Action:    exportAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "out, o", Usage: "output file (default stdout)"},
		},
	}
	reportCMD = cli.Command{
		Name:   "report",
		Usage:  "print portfolio KPIs and the best tickers by ROI",
		Action: reportAction,
		Flags: []cli.Flag{
			cli.IntFlag{Name: "top", Value: 5, Usage: "number of tickers to list"},
		},
	}
	quotesCMD = cli.Command{
		Name:      "quotes",
		Usage:     "look up last prices and company names",
		Action:    quotesAction,
		ArgsUsage: "<TICKER>...",
	}
)

func migrateAction(_ *cli.Context) error {
	logrus.WithField("cmd", "migrate").Info("Starting migrate CMD")

	db, err := database.InitMainDB(database.GetConfig())
	if err != nil {
		return err
	}
	database.Close(db)
	return nil
}

func importAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.NewExitError("import needs a CSV file", 2)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	db, err := database.InitMainDB(database.GetConfig())
	if err != nil {
		return err
	}
	defer database.Close(db)

	n, err := newLedger(db).Import(context.Background(), f)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d trades\n", n)
	return nil
}

func exportAction(c *cli.Context) error {
	db, err := database.InitReadOnlyDB(database.GetConfig())
	if err != nil {
		return err
	}
	defer database.Close(db)

	var w io.Writer = os.Stdout
	if out := c.String("out"); out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return newLedger(db).Export(context.Background(), w)
}

func reportAction(c *cli.Context) error {
	db, err := database.InitReadOnlyDB(database.GetConfig())
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx := context.Background()
	svc := newLedger(db)

	totals, err := svc.KPIs(ctx)
	if err != nil {
		return err
	}
	tickers, err := svc.Tickers(ctx, true, c.Int("top"))
	if err != nil {
		return err
	}

	writeReport(os.Stdout, totals, tickers)
	return nil
}

func writeReport(w io.Writer, totals kpi.Totals, tickers []kpi.TickerSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Trades\t%d\n", totals.TotalTrades)
	_, _ = fmt.Fprintf(tw, "Premium\t%s\n", totals.TotalPremium.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "Costs\t%s\n", totals.TotalCosts.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "Net gain\t%s\n", totals.NetGain.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "Capital\t%s\n", totals.CapitalInvested.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "ROI\t%s%%\n", totals.OverallROI.StringFixed(2))
	_, _ = fmt.Fprintln(tw)

	_, _ = fmt.Fprintln(tw, "TICKER\tTRADES\tNET\tROI\tBREAK-EVEN")
	for _, s := range tickers {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s%%\t%s\n",
			s.Ticker, s.TradeCount, s.NetGain.StringFixed(2), s.ROI.StringFixed(2), s.BreakEvenPrice.StringFixed(2))
	}
	_ = tw.Flush()
}

func quotesAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.NewExitError("quotes needs at least one ticker", 2)
	}

	svc := quotes.NewService(connectors.NewAlphaVantageClient(connectors.GetConfig()), quotes.GetConfig())
	for _, q := range svc.Lookup(context.Background(), c.Args()) {
		price := "unknown"
		if q.Known() {
			price = q.Price.StringFixed(2)
		}
		fmt.Println(strings.TrimSpace(fmt.Sprintf("%s\t%s\t%s", q.Ticker, price, q.Name)))
	}
	return nil
}

func newLedger(db *gorm.DB) *ledger.Service {
	return ledger.NewService(repository.NewTradeRepository(db), repository.NewHistoryRepository(db))
}
