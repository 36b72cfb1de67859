package domain

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is wrapped by every state transition rejection. The
// service layer maps it to a conflict outcome for callers.
var ErrIllegalTransition = errors.New("illegal state transition")

// OrderState encodes which transitions are legal for an order at its current
// lifecycle stage. State values hold behaviour only; all data stays on the
// order. A transition either returns a brand-new successor state or fails
// with an error naming the attempted operation and the reason. The graph is
// strictly linear:
//
//	created -> paid -> preparing -> awaiting_payment -> completed
type OrderState interface {
	// Status returns the persisted status the state corresponds to.
	Status() OrderStatus
	// Pay confirms payment for a freshly created order.
	Pay() (OrderState, error)
	// Prepare hands the paid order to the kitchen.
	Prepare() (OrderState, error)
	// AwaitPayment closes kitchen work and opens the table bill.
	AwaitPayment() (OrderState, error)
	// Complete settles the bill and terminates the lifecycle.
	Complete() (OrderState, error)
}

// OrderStateFor resolves the behavioural state for a persisted status value.
// It is total over the OrderStatus enum; an unmapped value is a programming
// error (enum and resolver out of sync), not a runtime condition.
func OrderStateFor(status OrderStatus) OrderState {
	switch status {
	case OrderStatusCreated:
		return orderCreated{}
	case OrderStatusPaid:
		return orderPaid{}
	case OrderStatusPreparing:
		return orderPreparing{}
	case OrderStatusAwaitingPayment:
		return orderAwaitingPayment{}
	case OrderStatusCompleted:
		return orderCompleted{}
	default:
		panic(fmt.Sprintf("domain: no order state mapped for status %q", status))
	}
}

func illegalOrderTransition(op string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrIllegalTransition, op, reason)
}

type orderCreated struct{}

func (orderCreated) Status() OrderStatus { return OrderStatusCreated }
func (orderCreated) Pay() (OrderState, error) {
	return orderPaid{}, nil
}
func (orderCreated) Prepare() (OrderState, error) {
	return nil, illegalOrderTransition("prepare", "hasn't been paid yet")
}
func (orderCreated) AwaitPayment() (OrderState, error) {
	return nil, illegalOrderTransition("await payment", "hasn't been prepared yet")
}
func (orderCreated) Complete() (OrderState, error) {
	return nil, illegalOrderTransition("complete", "hasn't awaited payment yet")
}

type orderPaid struct{}

func (orderPaid) Status() OrderStatus { return OrderStatusPaid }
func (orderPaid) Pay() (OrderState, error) {
	return nil, illegalOrderTransition("pay", "already paid")
}
func (orderPaid) Prepare() (OrderState, error) {
	return orderPreparing{}, nil
}
func (orderPaid) AwaitPayment() (OrderState, error) {
	return nil, illegalOrderTransition("await payment", "hasn't been prepared yet")
}
func (orderPaid) Complete() (OrderState, error) {
	return nil, illegalOrderTransition("complete", "hasn't awaited payment yet")
}

type orderPreparing struct{}

func (orderPreparing) Status() OrderStatus { return OrderStatusPreparing }
func (orderPreparing) Pay() (OrderState, error) {
	return nil, illegalOrderTransition("pay", "already paid")
}
func (orderPreparing) Prepare() (OrderState, error) {
	return nil, illegalOrderTransition("prepare", "already preparing")
}
func (orderPreparing) AwaitPayment() (OrderState, error) {
	return orderAwaitingPayment{}, nil
}
func (orderPreparing) Complete() (OrderState, error) {
	return nil, illegalOrderTransition("complete", "hasn't awaited payment yet")
}

type orderAwaitingPayment struct{}

func (orderAwaitingPayment) Status() OrderStatus { return OrderStatusAwaitingPayment }
func (orderAwaitingPayment) Pay() (OrderState, error) {
	return nil, illegalOrderTransition("pay", "already paid")
}
func (orderAwaitingPayment) Prepare() (OrderState, error) {
	return nil, illegalOrderTransition("prepare", "already prepared")
}
func (orderAwaitingPayment) AwaitPayment() (OrderState, error) {
	return nil, illegalOrderTransition("await payment", "already awaiting payment")
}
func (orderAwaitingPayment) Complete() (OrderState, error) {
	return orderCompleted{}, nil
}

type orderCompleted struct{}

func (orderCompleted) Status() OrderStatus { return OrderStatusCompleted }
func (orderCompleted) Pay() (OrderState, error) {
	return nil, illegalOrderTransition("pay", "already completed")
}
func (orderCompleted) Prepare() (OrderState, error) {
	return nil, illegalOrderTransition("prepare", "already completed")
}
func (orderCompleted) AwaitPayment() (OrderState, error) {
	return nil, illegalOrderTransition("await payment", "already completed")
}
func (orderCompleted) Complete() (OrderState, error) {
	return nil, illegalOrderTransition("complete", "already completed")
}
