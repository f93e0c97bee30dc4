package trailing

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"tradecore/internal/common"
)

// CloseRequest is the market order the manager asks the caller to submit
// when a trailing stop triggers.
type CloseRequest struct {
	Symbol   string
	Side     common.Side // closing side, opposite of the position's side
	Quantity decimal.Decimal
}

// PriceSource returns the latest known price for symbol, and whether one
// is available yet.
type PriceSource func(symbol string) (decimal.Decimal, bool)

// Closer is invoked exactly once per triggered stop, with the record
// already removed from the manager.
type Closer func(req CloseRequest)

// Manager owns every active TrailingStop and reprices them on a periodic
// poll under a tomb-supervised goroutine.
type Manager struct {
	mu    sync.Mutex
	stops map[string]*Stop // keyed by symbol; one stop per tracked position

	prices PriceSource
	close  Closer
	period time.Duration

	t *tomb.Tomb
}

// NewManager constructs a Manager. period is the repricing poll interval;
// zero defaults to 1 Hz per spec.
func NewManager(prices PriceSource, close Closer, period time.Duration) *Manager {
	if period <= 0 {
		period = time.Second
	}
	return &Manager{
		stops:  make(map[string]*Stop),
		prices: prices,
		close:  close,
		period: period,
		t:      new(tomb.Tomb),
	}
}

// Attach creates a TrailingStop for symbol and begins tracking it. Any
// existing stop for the same symbol is replaced.
func (m *Manager) Attach(symbol string, side common.Side, qty, entry decimal.Decimal, cfg Config, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops[symbol] = NewStop(symbol, side, qty, entry, cfg, now)
}

// Remove destroys the stop for symbol, if one exists, without triggering
// it. Used when the underlying position is closed by other means.
func (m *Manager) Remove(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stops, symbol)
}

// Get returns a copy of the current stop state for symbol, for inspection.
func (m *Manager) Get(symbol string) (Stop, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stops[symbol]
	if !ok {
		return Stop{}, false
	}
	return *s, true
}

// Start launches the repricing loop under the manager's tomb. It runs
// until Shutdown is called.
func (m *Manager) Start() {
	m.t.Go(m.run)
}

func (m *Manager) run() error {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()
	for {
		select {
		case <-m.t.Dying():
			return nil
		case now := <-ticker.C:
			m.tick(now)
		}
	}
}

// tick reprices every tracked stop against the latest available price and
// fires closes for any that have triggered. Safe to call directly in
// tests without the background loop.
func (m *Manager) tick(now time.Time) {
	for _, req := range m.Reprice(now) {
		if m.close != nil {
			m.close(req)
		}
	}
}

// Reprice applies one update cycle to every tracked stop and returns the
// close requests for any that triggered, removing those records. Exported
// so callers (and tests) can drive the cycle deterministically without
// going through the wall-clock ticker.
func (m *Manager) Reprice(now time.Time) []CloseRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	var triggered []CloseRequest
	for symbol, s := range m.stops {
		price, ok := m.prices(symbol)
		if !ok {
			continue
		}

		s.updateExtremum(price)
		s.checkActivation(price)
		if s.Active {
			candidate := s.candidateStop(price)
			s.tighten(candidate)
			s.updateProtectedProfit()
		}
		s.UpdatedAt = now

		if s.triggered(price) {
			log.Info().
				Str("symbol", symbol).
				Str("stop_price", s.CurrentStopPrice.String()).
				Str("trigger_price", price.String()).
				Msg("trailing: stop triggered")
			triggered = append(triggered, CloseRequest{
				Symbol:   symbol,
				Side:     s.Side.Opposite(),
				Quantity: s.Quantity,
			})
			delete(m.stops, symbol)
		}
	}
	return triggered
}

// Shutdown stops the repricing loop and waits for it to exit.
func (m *Manager) Shutdown() error {
	m.t.Kill(nil)
	return m.t.Wait()
}
