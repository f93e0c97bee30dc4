package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrIllegalStateTransition is returned when an operation would move an
	// Order out of a terminal state or otherwise violate the order state
	// machine.
	ErrIllegalStateTransition = errors.New("illegal order state transition")
	// ErrInvalidQuantity flags a non-positive order or fill quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidPrice flags a non-positive price.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrOverfill is returned if a fill would push filled_quantity past quantity.
	ErrOverfill = errors.New("fill would exceed order quantity")
)

// AlgoParams is an opaque parameter bag attached to a parent order,
// interpreted by the execution algorithm named by the order's Type.
type AlgoParams map[string]any

// Order is the exchange's record of an order. Orders are mutated only by
// the engine that owns them until they reach a terminal OrderStatus, and
// are read-only after.
type Order struct {
	OrderID       string
	ClientOrderID string

	Instrument Instrument
	Venue      *Venue // unset until routed

	Side        Side
	Type        OrderType
	Quantity    decimal.Decimal
	LimitPrice  *decimal.Decimal
	StopPrice   *decimal.Decimal
	TimeInForce TimeInForce
	Status      OrderStatus

	FilledQuantity decimal.Decimal
	AvgFillPrice   decimal.Decimal

	CreatedAt   time.Time
	SubmittedAt *time.Time
	UpdatedAt   *time.Time

	ParentOrderID *string
	AlgoParams    AlgoParams

	RejectedReason string

	preCancelStatus OrderStatus
}

// NewOrder constructs an Order in PENDING_NEW status with fresh identifiers.
func NewOrder(instrument Instrument, side Side, orderType OrderType, quantity decimal.Decimal, tif TimeInForce) *Order {
	return &Order{
		OrderID:        uuid.New().String(),
		ClientOrderID:  uuid.New().String(),
		Instrument:     instrument,
		Side:           side,
		Type:           orderType,
		Quantity:       quantity,
		TimeInForce:    tif,
		Status:         PendingNew,
		FilledQuantity: decimal.Zero,
		AvgFillPrice:   decimal.Zero,
		CreatedAt:      time.Now(),
	}
}

// RemainingQuantity is Quantity - FilledQuantity.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// IsComplete reports whether the order is in a terminal state.
func (o *Order) IsComplete() bool {
	return o.Status.IsTerminal()
}

func (o *Order) touch(now time.Time) {
	o.UpdatedAt = &now
}

// Submit transitions PENDING_NEW -> NEW on venue acknowledgement.
func (o *Order) Submit(now time.Time) error {
	if o.Status != PendingNew {
		return fmt.Errorf("%w: submit from %s", ErrIllegalStateTransition, o.Status)
	}
	o.Status = New
	o.SubmittedAt = &now
	o.touch(now)
	return nil
}

// ApplyFill credits a fill's quantity to the order, recomputing the
// size-weighted average fill price from the prior average times the
// prior filled quantity plus this fill's notional (the division rounds to
// decimal's division precision), and advances the order to
// PARTIALLY_FILLED or FILLED.
func (o *Order) ApplyFill(qty, price decimal.Decimal, now time.Time) error {
	if o.IsComplete() {
		return fmt.Errorf("%w: fill on terminal order %s", ErrIllegalStateTransition, o.OrderID)
	}
	if qty.Sign() <= 0 {
		return ErrInvalidQuantity
	}
	if price.Sign() <= 0 {
		return ErrInvalidPrice
	}
	if o.FilledQuantity.Add(qty).GreaterThan(o.Quantity) {
		return ErrOverfill
	}

	priorNotional := o.AvgFillPrice.Mul(o.FilledQuantity)
	newNotional := priorNotional.Add(qty.Mul(price))
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	if o.FilledQuantity.Sign() > 0 {
		o.AvgFillPrice = newNotional.Div(o.FilledQuantity)
	}

	if o.FilledQuantity.GreaterThanOrEqual(o.Quantity) {
		o.Status = Filled
	} else {
		o.Status = PartiallyFilled
	}
	o.touch(now)
	return nil
}

// RequestCancel moves a resting NEW or PARTIALLY_FILLED order to
// PENDING_CANCEL, the intermediate state a cancel request occupies until
// the venue acknowledges or rejects it. The prior status is remembered so
// RejectCancel can restore it.
func (o *Order) RequestCancel(now time.Time) error {
	if o.Status != New && o.Status != PartiallyFilled {
		return fmt.Errorf("%w: cancel request from %s", ErrIllegalStateTransition, o.Status)
	}
	o.preCancelStatus = o.Status
	o.Status = PendingCancel
	o.touch(now)
	return nil
}

// ConfirmCancel moves a PENDING_CANCEL order to CANCELED on venue
// acknowledgement.
func (o *Order) ConfirmCancel(now time.Time) error {
	if o.Status != PendingCancel {
		return fmt.Errorf("%w: cancel confirm from %s", ErrIllegalStateTransition, o.Status)
	}
	o.Status = Canceled
	o.touch(now)
	return nil
}

// RejectCancel reverts a PENDING_CANCEL order to the status it held before
// the cancel request, on venue rejection of that request.
func (o *Order) RejectCancel(now time.Time) error {
	if o.Status != PendingCancel {
		return fmt.Errorf("%w: cancel reject from %s", ErrIllegalStateTransition, o.Status)
	}
	o.Status = o.preCancelStatus
	o.touch(now)
	return nil
}

// Reject moves the order to REJECTED and preserves the reason.
func (o *Order) Reject(reason string, now time.Time) error {
	if o.IsComplete() {
		return fmt.Errorf("%w: reject of terminal order %s", ErrIllegalStateTransition, o.OrderID)
	}
	o.Status = Rejected
	o.RejectedReason = reason
	o.touch(now)
	return nil
}

// Expire moves a resting order to EXPIRED (time-in-force lapsed).
func (o *Order) Expire(now time.Time) error {
	if o.IsComplete() {
		return fmt.Errorf("%w: expire of terminal order %s", ErrIllegalStateTransition, o.OrderID)
	}
	o.Status = Expired
	o.touch(now)
	return nil
}

// NotionalAt returns Quantity * price.
func (o *Order) NotionalAt(price decimal.Decimal) decimal.Decimal {
	return o.Quantity.Mul(price)
}

func (o Order) String() string {
	return fmt.Sprintf(
		"Order{id=%s side=%s type=%s qty=%s filled=%s avg=%s status=%s}",
		o.OrderID, o.Side, o.Type, o.Quantity, o.FilledQuantity, o.AvgFillPrice, o.Status,
	)
}
