package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/common"
)

// ParentRecord tracks one parent order under active algorithmic
// execution: the algorithm driving it, its children, and the running
// size-weighted fill aggregation credited back from those children.
type ParentRecord struct {
	Parent   *common.Order
	AlgoType common.OrderType
	Children []*common.Order

	createdAt time.Time
	cancel    func()
}

// NewParentRecord starts tracking parent under algoType.
func NewParentRecord(parent *common.Order, algoType common.OrderType, cancel func()) *ParentRecord {
	return &ParentRecord{
		Parent:    parent,
		AlgoType:  algoType,
		createdAt: time.Now(),
		cancel:    cancel,
	}
}

// AddChild registers a newly submitted child order under this parent.
func (r *ParentRecord) AddChild(child *common.Order) {
	child.ParentOrderID = &r.Parent.OrderID
	r.Children = append(r.Children, child)
}

// ApplyChildFill credits a child fill up to the parent: the parent's
// filled_quantity increases by the fill quantity and avg_fill_price is
// recomputed as the size-weighted mean across all fills applied so far,
// mirroring Order.ApplyFill's own cumulative-notional approach.
func (r *ParentRecord) ApplyChildFill(qty, price decimal.Decimal, now time.Time) error {
	return r.Parent.ApplyFill(qty, price, now)
}

// Cancel cancels every outstanding child, then the parent itself. Each
// order is moved through PENDING_CANCEL before CANCELED: this in-process
// engine has no separate venue round trip for a cancel of an order it
// already owns locally, so the acknowledgement is immediate, but the
// state machine still visits the intermediate state per spec.
func (r *ParentRecord) Cancel(now time.Time) error {
	if r.cancel != nil {
		r.cancel()
	}
	for _, child := range r.Children {
		if !child.IsComplete() {
			_ = cancelOrder(child, now)
		}
	}
	if !r.Parent.IsComplete() {
		return cancelOrder(r.Parent, now)
	}
	return nil
}

// cancelOrder drives o through RequestCancel then ConfirmCancel. An order
// still PENDING_NEW never reached the venue, so RequestCancel's NEW /
// PARTIALLY_FILLED precondition does not apply to it; it is rejected
// outright instead.
func cancelOrder(o *common.Order, now time.Time) error {
	if o.Status == common.PendingNew {
		return o.Reject("canceled before acknowledgement", now)
	}
	if err := o.RequestCancel(now); err != nil {
		return err
	}
	return o.ConfirmCancel(now)
}
