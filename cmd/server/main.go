// Command server runs the live trading service: risk gate, execution
// engine, trailing stop manager, and a venue adapter wired together behind
// a single process.
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradecore/internal/common"
	"tradecore/internal/engine"
	tradenet "tradecore/internal/net"
	"tradecore/internal/risk"
	"tradecore/internal/trailing"
)

func main() {
	venueAddr := flag.String("venue", "127.0.0.1:9001", "address of the venue to connect to")
	senderCompID := flag.String("sender", "tradecore", "FIX SenderCompID to log on with")
	initialCapital := flag.Float64("capital", 1_000_000, "starting capital for risk-gate accounting")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter, err := tradenet.Dial(*venueAddr, *senderCompID)
	if err != nil {
		log.Fatal().Err(err).Str("venue", *venueAddr).Msg("unable to reach venue")
	}
	if err := adapter.Start(); err != nil {
		log.Fatal().Err(err).Msg("unable to start venue adapter")
	}
	defer func() {
		if err := adapter.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error during venue adapter shutdown")
		}
	}()

	gate := risk.New(defaultLimits(), decimal.NewFromFloat(*initialCapital))

	submitToVenue := func(venueID string, order *common.Order) error {
		if v := gate.CheckOrder(order, referencePriceFor(order)); v != nil {
			log.Warn().Str("orderID", order.OrderID).Str("reason", v.Description).Msg("risk gate rejected order")
			_ = order.Reject(v.Description, time.Now())
			return nil
		}
		gate.TrackOpenOrder(order)
		return adapter.SendNewOrderSingle(tradenet.NewOrderSingleFromOrder(order))
	}

	exec := engine.New(submitToVenue)

	latestPrices := make(map[string]decimal.Decimal)
	trail := trailing.NewManager(
		func(symbol string) (decimal.Decimal, bool) {
			p, ok := latestPrices[symbol]
			return p, ok
		},
		func(req trailing.CloseRequest) {
			order := common.NewOrder(common.Instrument{Symbol: req.Symbol}, req.Side, common.Market, req.Quantity, common.DAY)
			if err := submitToVenue("", order); err != nil {
				log.Error().Err(err).Str("symbol", req.Symbol).Msg("failed to submit trailing-stop close")
			}
		},
		time.Second,
	)
	trail.Start()
	defer func() {
		if err := trail.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error during trailing manager shutdown")
		}
	}()

	go dispatchInbound(adapter, exec, gate, latestPrices, *venueAddr)
	defer func() {
		if err := exec.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error during execution engine shutdown")
		}
	}()

	log.Info().Str("venue", *venueAddr).Msg("trading service running")
	<-ctx.Done()
	log.Info().Msg("trading service shutting down")
}

// dispatchInbound feeds venue execution reports and market data back into
// the risk gate and the trailing price feed.
func dispatchInbound(adapter *tradenet.VenueAdapter, exec *engine.Engine, gate *risk.Gate, prices map[string]decimal.Decimal, venueAddr string) {
	for msg := range adapter.Inbound {
		switch m := msg.(type) {
		case tradenet.ExecutionReport:
			if m.OrdStatus != tradenet.OrdStatusFilled && m.OrdStatus != tradenet.OrdStatusPartiallyFilled {
				continue
			}
			fill := common.NewFill(m.ClOrdID, venueAddr, m.LastPx, m.LastQty, sideOrBuy(m.Side), common.Taker, decimal.Zero, time.Now())
			gate.OnFill(fill, m.Symbol)
			if parentID, ok := findParent(exec, m.ClOrdID); ok {
				if err := exec.ApplyFill(parentID, fill, time.Now()); err != nil {
					log.Error().Err(err).Str("parentID", parentID).Msg("failed crediting fill to parent order")
				}
			}
			prices[m.Symbol] = m.LastPx
		case tradenet.MarketDataSnapshotFullRefresh:
			prices[m.Symbol] = m.BidPrice.Add(m.AskPrice).Div(decimal.NewFromInt(2))
		case tradenet.MarketDataIncrementalRefresh:
			prices[m.Symbol] = m.Price
		case tradenet.Reject:
			log.Warn().Str("text", m.Text).Msg("venue rejected session-level message")
		}
	}
}

// findParent resolves a child order's owning parent via the engine's order
// history, since execution reports only echo the child's order id.
func findParent(exec *engine.Engine, childOrderID string) (string, bool) {
	child, ok := exec.History(childOrderID)
	if !ok || child.ParentOrderID == nil {
		return "", false
	}
	return *child.ParentOrderID, true
}

func sideOrBuy(s tradenet.Side) common.Side {
	side, err := tradenet.SideToCommon(s)
	if err != nil {
		return common.Buy
	}
	return side
}

func referencePriceFor(order *common.Order) decimal.Decimal {
	if order.LimitPrice != nil {
		return *order.LimitPrice
	}
	return order.AvgFillPrice
}

func defaultLimits() common.RiskLimits {
	return common.RiskLimits{
		MaxPositionSize:     decimal.NewFromInt(100_000),
		MaxOrderSize:        decimal.NewFromInt(10_000),
		MinOrderValue:       decimal.NewFromInt(1),
		MaxOrderValue:       decimal.NewFromInt(1_000_000),
		MaxDailyLoss:        decimal.NewFromInt(50_000),
		MaxDailyVolume:      decimal.NewFromInt(1_000_000),
		MaxTradesPerDay:     10_000,
		MaxOpenOrders:       500,
		MaxOrdersPerSecond:  50,
		MaxCancelsPerSecond: 50,
		MaxPriceDeviation:   decimal.NewFromFloat(0.1),
		MaxDrawdownFraction: decimal.NewFromFloat(0.2),
		MaxConcentration:    decimal.NewFromFloat(0.5),
	}
}
