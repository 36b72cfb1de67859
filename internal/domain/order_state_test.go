package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestOrderStateLinearProgression(t *testing.T) {
	state := OrderStateFor(OrderStatusCreated)

	steps := []struct {
		name string
		next func(OrderState) (OrderState, error)
		want OrderStatus
	}{
		{"pay", func(s OrderState) (OrderState, error) { return s.Pay() }, OrderStatusPaid},
		{"prepare", func(s OrderState) (OrderState, error) { return s.Prepare() }, OrderStatusPreparing},
		{"await payment", func(s OrderState) (OrderState, error) { return s.AwaitPayment() }, OrderStatusAwaitingPayment},
		{"complete", func(s OrderState) (OrderState, error) { return s.Complete() }, OrderStatusCompleted},
	}

	for _, step := range steps {
		next, err := step.next(state)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", step.name, err)
		}
		if next.Status() != step.want {
			t.Fatalf("%s: expected status %s got %s", step.name, step.want, next.Status())
		}
		state = next
	}
}

func TestOrderStateRejectsIllegalTransitions(t *testing.T) {
	ops := map[string]func(OrderState) (OrderState, error){
		"pay":           func(s OrderState) (OrderState, error) { return s.Pay() },
		"prepare":       func(s OrderState) (OrderState, error) { return s.Prepare() },
		"await payment": func(s OrderState) (OrderState, error) { return s.AwaitPayment() },
		"complete":      func(s OrderState) (OrderState, error) { return s.Complete() },
	}

	legal := map[OrderStatus]string{
		OrderStatusCreated:         "pay",
		OrderStatusPaid:            "prepare",
		OrderStatusPreparing:       "await payment",
		OrderStatusAwaitingPayment: "complete",
		OrderStatusCompleted:       "",
	}

	for status, allowed := range legal {
		state := OrderStateFor(status)
		for name, op := range ops {
			next, err := op(state)
			if name == allowed {
				if err != nil {
					t.Fatalf("%s from %s: unexpected error: %v", name, status, err)
				}
				continue
			}
			if err == nil {
				t.Fatalf("%s from %s: expected illegal transition, got %s", name, status, next.Status())
			}
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("%s from %s: error does not wrap ErrIllegalTransition: %v", name, status, err)
			}
			if !strings.Contains(err.Error(), name) {
				t.Fatalf("%s from %s: error %q does not name the operation", name, status, err)
			}
		}
	}
}

func TestOrderStateCompletedIsTerminal(t *testing.T) {
	state := OrderStateFor(OrderStatusCompleted)
	if _, err := state.Complete(); err == nil || !strings.Contains(err.Error(), "already completed") {
		t.Fatalf("expected already completed error, got %v", err)
	}
}

func TestOrderStateForIsTotalAndPure(t *testing.T) {
	statuses := []OrderStatus{
		OrderStatusCreated,
		OrderStatusPaid,
		OrderStatusPreparing,
		OrderStatusAwaitingPayment,
		OrderStatusCompleted,
	}
	for _, status := range statuses {
		first := OrderStateFor(status)
		second := OrderStateFor(status)
		if first.Status() != status {
			t.Fatalf("resolved state reports %s for %s", first.Status(), status)
		}
		if second.Status() != first.Status() {
			t.Fatalf("resolver is not stable for %s", status)
		}
	}
}

func TestOrderStateForPanicsOnUnknownStatus(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unmapped status")
		}
	}()
	OrderStateFor(OrderStatus("shipped"))
}

func TestOrderLazyStateResolutionIsIdempotent(t *testing.T) {
	order := Order{Status: OrderStatusPreparing}
	first := order.State()
	if first.Status() != OrderStatusPreparing {
		t.Fatalf("expected preparing state, got %s", first.Status())
	}

	// Mutating the raw status must not re-resolve an already attached state.
	order.Status = OrderStatusCompleted
	if order.State().Status() != OrderStatusPreparing {
		t.Fatalf("state was re-resolved for an attached instance")
	}
}

func TestOrderSetStateKeepsStatusInAgreement(t *testing.T) {
	order := Order{Status: OrderStatusPreparing}
	next, err := order.State().AwaitPayment()
	if err != nil {
		t.Fatalf("await payment: %v", err)
	}
	order.SetState(next)
	if order.Status != OrderStatusAwaitingPayment {
		t.Fatalf("expected status awaiting_payment got %s", order.Status)
	}
	if order.State().Status() != order.Status {
		t.Fatalf("state and status disagree")
	}
}
