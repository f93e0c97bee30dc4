package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"

	"tradecore/internal/common"
)

// ErrUnknownParent is returned when an operation references a parent
// order id the engine has no active record for.
var ErrUnknownParent = errors.New("engine: unknown parent order")

// Engine orchestrates parent-order algorithmic execution: dispatching a
// parent order to the VWAP, Iceberg, or a direct SOR-routed submission,
// tracking every order it has ever seen, and crediting child fills back
// to their parent.
type Engine struct {
	mu      sync.Mutex
	active  map[string]*ParentRecord // parent order id -> record
	history map[string]*common.Order // every order ever submitted, by id
	fills   []common.Fill

	submit func(venueID string, order *common.Order) error

	t *tomb.Tomb
}

// New constructs an Engine. submit is the venue-facing hook children are
// ultimately sent through once past the risk gate; it is supplied by the
// caller so the engine stays decoupled from any one transport.
func New(submit func(venueID string, order *common.Order) error) *Engine {
	return &Engine{
		active:  make(map[string]*ParentRecord),
		history: make(map[string]*common.Order),
		submit:  submit,
		t:       new(tomb.Tomb),
	}
}

// directSubmitter adapts a parent-level venue routing decision into the
// ChildSubmitter interface the algorithms depend on.
type directSubmitter struct {
	engine  *Engine
	venueID string
	record  *ParentRecord
}

func (d *directSubmitter) SubmitChild(order *common.Order) error {
	d.engine.mu.Lock()
	d.record.AddChild(order)
	d.engine.history[order.OrderID] = order
	d.engine.mu.Unlock()

	if err := order.Submit(time.Now()); err != nil {
		return err
	}
	if d.engine.submit == nil {
		return nil
	}
	return d.engine.submit(d.venueID, order)
}

// SubmitVWAP starts a VWAP algorithm for parent under params, returning
// once the algorithm goroutine has been launched (not once it finishes).
func (e *Engine) SubmitVWAP(parent *common.Order, venueID string, params VWAPParams, quotes func() (bid, ask decimal.Decimal)) {
	e.mu.Lock()
	record := NewParentRecord(parent, common.VWAP, nil)
	e.active[parent.OrderID] = record
	e.history[parent.OrderID] = parent
	e.mu.Unlock()

	algo := &VWAPAlgo{
		Parent:    parent,
		Params:    params,
		Submitter: &directSubmitter{engine: e, venueID: venueID, record: record},
		Quotes:    quotes,
	}
	e.t.Go(func() error { return algo.Run(e.t) })
}

// SubmitIceberg starts an Iceberg algorithm for parent under params.
func (e *Engine) SubmitIceberg(parent *common.Order, venueID string, params IcebergParams, bestPrice func(common.Side) decimal.Decimal, waitForFill func(*tomb.Tomb, *common.Order, time.Duration) bool, cancel func(*common.Order) error) {
	e.mu.Lock()
	record := NewParentRecord(parent, common.Iceberg, nil)
	e.active[parent.OrderID] = record
	e.history[parent.OrderID] = parent
	e.mu.Unlock()

	algo := &IcebergAlgo{
		Parent:      parent,
		Params:      params,
		Submitter:   &directSubmitter{engine: e, venueID: venueID, record: record},
		Canceler:    cancel,
		BestPrice:   bestPrice,
		WaitForFill: waitForFill,
	}
	e.t.Go(func() error { return algo.Run(e.t) })
}

// SubmitSOR routes parent's full quantity across quotes per params,
// tracking per-venue statistics, and submits one LIMIT child per
// resulting allocation concurrently.
func (e *Engine) SubmitSOR(parent *common.Order, quotes []VenueQuote, params SORParams, stats map[string]*VenueStats) error {
	allocations, err := Route(parent.Side, parent.Quantity, quotes, params, stats)
	if err != nil {
		return err
	}

	e.mu.Lock()
	record := NewParentRecord(parent, parent.Type, nil)
	e.active[parent.OrderID] = record
	e.history[parent.OrderID] = parent
	e.mu.Unlock()

	var wg sync.WaitGroup
	for _, alloc := range allocations {
		alloc := alloc
		s, ok := stats[alloc.VenueID]
		if !ok {
			s = &VenueStats{VenueID: alloc.VenueID}
			stats[alloc.VenueID] = s
		}
		s.RecordOrder()

		wg.Add(1)
		go func() {
			defer wg.Done()
			child := common.NewOrder(parent.Instrument, parent.Side, common.Limit, alloc.Quantity, common.DAY)
			child.LimitPrice = &alloc.Price
			submitter := &directSubmitter{engine: e, venueID: alloc.VenueID, record: record}
			if err := submitter.SubmitChild(child); err != nil {
				log.Warn().Err(err).Str("venue_id", alloc.VenueID).Msg("engine: sor child rejected")
			}
		}()
	}
	wg.Wait()
	return nil
}

// ApplyFill credits a fill to both the child order and its parent record,
// advancing both state machines. parentID must already be tracked by an
// active algorithm or this returns ErrUnknownParent.
func (e *Engine) ApplyFill(parentID string, fill common.Fill, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	record, ok := e.active[parentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParent, parentID)
	}

	child, ok := e.history[fill.OrderID]
	if ok {
		if err := child.ApplyFill(fill.Quantity, fill.Price, now); err != nil {
			log.Warn().Err(err).Str("order_id", fill.OrderID).Msg("engine: child fill rejected")
			return err
		}
	}

	if err := record.ApplyChildFill(fill.Quantity, fill.Price, now); err != nil {
		log.Warn().Err(err).Str("parent_id", parentID).Msg("engine: parent fill aggregation rejected")
		return err
	}
	e.fills = append(e.fills, fill)

	if record.Parent.IsComplete() {
		delete(e.active, parentID)
	}
	return nil
}

// CancelParent cascades a cancel to every outstanding child, then the
// parent itself, and stops tracking it as active.
func (e *Engine) CancelParent(parentID string, now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	record, ok := e.active[parentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParent, parentID)
	}
	delete(e.active, parentID)
	return record.Cancel(now)
}

// Fills returns every fill the engine has applied so far.
func (e *Engine) Fills() []common.Fill {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]common.Fill, len(e.fills))
	copy(out, e.fills)
	return out
}

// History returns the order record for id, if the engine has ever seen it.
func (e *Engine) History(orderID string) (*common.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.history[orderID]
	return o, ok
}

// ActiveParents returns the order ids of every parent currently under
// algorithmic execution.
func (e *Engine) ActiveParents() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown signals every running algorithm goroutine to stop and waits
// for them to return.
func (e *Engine) Shutdown() error {
	e.t.Kill(nil)
	return e.t.Wait()
}
