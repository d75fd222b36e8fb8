package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"rsiTrendBot/config"
	"rsiTrendBot/internal/adapters/binanceclient"
	"rsiTrendBot/internal/adapters/logger"
	"rsiTrendBot/internal/adapters/twelvedata"
	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/ports"
	"rsiTrendBot/internal/strategy/indicators"
	"rsiTrendBot/internal/utils"
)

// indicatorRow is one kline with the indicator values computed up to it.
type indicatorRow struct {
	Kline *domain.Kline
	RSI   float64
	EMA   float64
	WMA   float64
}

// buildRows computes RSI, EMA(RSI) and WMA(RSI) for every kline that has enough history.
// Like the bot, EMA and WMA at row i are computed over the RSI series up to i.
func buildRows(klines []*domain.Kline, rsiPeriod, emaPeriod, wmaPeriod int) ([]indicatorRow, []float64) {
	series := indicators.RSISeries(domain.Closes(klines), rsiPeriod)
	if len(series) == 0 {
		return nil, nil
	}
	offset := len(klines) - len(series)
	rows := make([]indicatorRow, len(series))
	for i := range series {
		rows[i] = indicatorRow{
			Kline: klines[offset+i],
			RSI:   series[i],
			EMA:   indicators.ComputeEMA(series[:i+1], emaPeriod),
			WMA:   indicators.ComputeWMA(series[:i+1], wmaPeriod),
		}
	}
	return rows, series
}

func renderTable(w io.Writer, rows []indicatorRow, last int, emaPeriod, wmaPeriod int) {
	if last > 0 && len(rows) > last {
		rows = rows[len(rows)-last:]
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Close Time (UTC)", "Close", "RSI", fmt.Sprintf("EMA%d", emaPeriod), fmt.Sprintf("WMA%d", wmaPeriod), "Final"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	for _, r := range rows {
		t.AppendRow(table.Row{
			r.Kline.CloseTime.UTC().Format("2006-01-02 15:04"),
			fmt.Sprintf("%.2f", r.Kline.Close),
			fmt.Sprintf("%.2f", r.RSI),
			fmt.Sprintf("%.2f", r.EMA),
			fmt.Sprintf("%.2f", r.WMA),
			r.Kline.IsFinal,
		})
	}
	t.Render()
}

func newSource(route config.SymbolRoute, appLogger ports.Logger) (ports.KlineSource, error) {
	switch route.Source {
	case config.SourceBinance:
		return binanceclient.New(binanceclient.Config{
			APIKey:     os.Getenv("BINANCE_API_KEY"),
			SecretKey:  os.Getenv("BINANCE_API_SECRET"),
			BaseURL:    os.Getenv("BINANCE_BASE_URL"),
			Logger:     appLogger,
			MaxRetries: 2,
			RetryDelay: time.Second,
		})
	case config.SourceTwelveData:
		return twelvedata.New(twelvedata.Config{
			APIKey:  os.Getenv("TWELVE_DATA_API_KEY"),
			BaseURL: os.Getenv("TWELVE_DATA_BASE_URL"),
			Logger:  appLogger,
		})
	}
	return nil, fmt.Errorf("unknown source %q", route.Source)
}

func fetchAction(ctx context.Context, cmd *cli.Command) error {
	_ = godotenv.Load()

	appLogger, err := logger.New(logger.ParseLevel(cmd.String("log-level")))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Sync()

	route, err := config.RouteSymbol(cmd.String("symbol"))
	if err != nil {
		return err
	}
	source, err := newSource(route, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", route.Source, err)
	}

	interval := cmd.String("interval")
	limit := int(cmd.Int("limit"))
	rsiPeriod, emaPeriod, wmaPeriod := int(cmd.Int("rsi")), int(cmd.Int("ema")), int(cmd.Int("wma"))

	klines, err := source.GetKlines(ctx, route.SourceSymbol, interval, limit)
	if err != nil {
		return fmt.Errorf("fetching klines: %w", err)
	}
	appLogger.Info(ctx, "Fetched klines", map[string]interface{}{
		"symbol": route.Symbol, "source": route.Source, "interval": interval, "count": len(klines),
	})

	rows, series := buildRows(klines, rsiPeriod, emaPeriod, wmaPeriod)
	if len(rows) == 0 {
		return fmt.Errorf("%d klines are not enough for RSI(%d)", len(klines), rsiPeriod)
	}
	fmt.Printf("%s %s via %s (%s)\n", route.Symbol, interval, route.Source, route.SourceSymbol)
	renderTable(os.Stdout, rows, int(cmd.Int("rows")), emaPeriod, wmaPeriod)

	if out := cmd.String("csv"); out != "" {
		if err := utils.WriteKlinesToCSV(klines, series, out); err != nil {
			return fmt.Errorf("writing CSV: %w", err)
		}
		appLogger.Info(ctx, "Saved CSV", map[string]interface{}{"filename": out})
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "fetch_klines",
		Usage: "Fetch klines and print the RSI, EMA(RSI) and WMA(RSI) series",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "symbol", Aliases: []string{"s"}, Usage: "Symbol, e.g. BTCUSD or XAUUSD", Value: "BTCUSD"},
			&cli.StringFlag{Name: "interval", Aliases: []string{"i"}, Usage: "Kline interval", Value: "15m"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Number of klines to fetch", Value: 100},
			&cli.IntFlag{Name: "rows", Aliases: []string{"n"}, Usage: "Rows to print, 0 for all", Value: 20},
			&cli.IntFlag{Name: "rsi", Usage: "RSI period", Value: 14},
			&cli.IntFlag{Name: "ema", Usage: "EMA period applied to RSI", Value: 9},
			&cli.IntFlag{Name: "wma", Usage: "WMA period applied to RSI", Value: 45},
			&cli.StringFlag{Name: "csv", Usage: "Optional CSV output `FILE`"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level", Value: "WARN"},
		},
		Action: fetchAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
