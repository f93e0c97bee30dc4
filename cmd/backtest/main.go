// Command backtest replays a stored tick stream through the simulated
// fill engine and prints the resulting performance summary.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradecore/internal/backtest"
	"tradecore/internal/common"
	"tradecore/internal/tickstore"
)

func main() {
	dataDir := flag.String("data", "", "tickstore base directory (required)")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbols to replay (required)")
	startFlag := flag.String("start", "", "start time, RFC3339 (required)")
	endFlag := flag.String("end", "", "end time, RFC3339 (required)")
	initialCash := flag.Float64("cash", 1_000_000, "initial capital")
	feesEnabled := flag.Bool("fees", true, "enable maker/taker fee accounting")
	slippageBps := flag.Float64("slippage-bps", 2, "market-order slippage in basis points")
	impactCoefficient := flag.Float64("impact-coefficient", 0.1, "market-impact coefficient")
	flag.Parse()

	if *dataDir == "" || *symbolsFlag == "" || *startFlag == "" || *endFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -data <dir> -symbols <a,b,c> -start <RFC3339> -end <RFC3339>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	start, err := time.Parse(time.RFC3339, *startFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -start")
	}
	end, err := time.Parse(time.RFC3339, *endFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -end")
	}
	symbols := strings.Split(*symbolsFlag, ",")

	store, err := tickstore.New(*dataDir, 0)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *dataDir).Msg("unable to open tickstore")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing tickstore")
		}
	}()

	var ticks []common.TickData
	for _, symbol := range symbols {
		symbolTicks, err := store.QueryTicks(strings.TrimSpace(symbol), start, end)
		if err != nil {
			log.Fatal().Err(err).Str("symbol", symbol).Msg("unable to query ticks")
		}
		ticks = append(ticks, symbolTicks...)
	}
	log.Info().Int("ticks", len(ticks)).Strs("symbols", symbols).Msg("loaded tick stream")

	cfg := backtest.Config{
		Start:                 start,
		End:                   end,
		InitialCash:           decimal.NewFromFloat(*initialCash),
		Instruments:           symbols,
		FeesEnabled:           *feesEnabled,
		TakerFeeBps:           decimal.NewFromFloat(1),
		MakerFeeBps:           decimal.NewFromFloat(0.5),
		ImpactModel:           backtest.ImpactSqrt,
		ImpactCoefficient:     *impactCoefficient,
		SlippageModel:         backtest.SlippageProportional,
		SlippageBps:           *slippageBps,
		PartialFillProbability: 0,
		DeriveBookFromTrades:  true,
		RandSeed:              1,
	}

	engine := backtest.New(cfg, backtest.Callbacks{})
	result := engine.Run(ticks)

	printResult(result)
}

func printResult(r backtest.Result) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	summary := map[string]any{
		"total_trades":     r.TotalTrades,
		"total_volume":     r.TotalVolume.String(),
		"total_fees":       r.TotalFees.String(),
		"total_return":     r.TotalReturn.String(),
		"percent_return":   r.PercentReturn,
		"sharpe":           r.Sharpe,
		"sortino":          r.Sortino,
		"max_drawdown":     r.MaxDrawdown,
		"win_rate":         r.WinRate,
		"avg_win":          r.AvgWin.String(),
		"avg_loss":         r.AvgLoss.String(),
		"profit_factor":    r.ProfitFactor,
		"avg_slippage_bps": r.AvgSlippageBps,
		"avg_impact_bps":   r.AvgImpactBps,
	}
	if err := enc.Encode(summary); err != nil {
		log.Error().Err(err).Msg("failed to write result summary")
	}
}
