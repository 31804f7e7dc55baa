package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vasiliy-maslov/movie-checkout/internal/order"
)

type AttemptStatus string

const (
	StatusInitiated AttemptStatus = "initiated"
	StatusSucceeded AttemptStatus = "succeeded"
	StatusFailed    AttemptStatus = "failed"
	StatusCanceled  AttemptStatus = "canceled"
	StatusRefunded  AttemptStatus = "refunded"
)

func (as AttemptStatus) String() string {
	return string(as)
}

var (
	ErrInvalidState      = errors.New("order is not payable in its current state")
	ErrAlreadyPaid       = errors.New("order is already paid")
	ErrPaymentInProgress = errors.New("a payment attempt is already in progress for this order")
	ErrStaleTotal        = errors.New("order total is outside the accepted payment range")
)

// Attempt is one provider-side payment session tied to an order. Rows are
// appended and their status advanced, never deleted.
type Attempt struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	OrderID     uuid.UUID     `json:"order_id" db:"order_id"`
	UserID      uuid.UUID     `json:"user_id" db:"user_id"`
	ExternalRef string        `json:"external_ref" db:"external_ref"`
	Status      AttemptStatus `json:"status" db:"status"`
	Amount      float64       `json:"amount" db:"amount"`
	PaymentURL  string        `json:"payment_url,omitempty" db:"-"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}

type EventType string

const (
	EventSuccess      EventType = "success"
	EventFailure      EventType = "failure"
	EventCancellation EventType = "cancellation"
	EventRefund       EventType = "refund"
)

// Event is a provider notification after transport-level verification.
// Delivery is at-least-once and may be out of order.
type Event struct {
	ID          string    `json:"event_id"`
	Type        EventType `json:"type"`
	ExternalRef string    `json:"external_ref"`
}

type EventOutcome string

const (
	OutcomeApplied   EventOutcome = "applied"
	OutcomeDuplicate EventOutcome = "duplicate"
	OutcomeOrphaned  EventOutcome = "orphaned"
	OutcomeStale     EventOutcome = "stale"
)

type ApplyResult struct {
	Outcome   EventOutcome
	OrderID   uuid.UUID
	UserID    uuid.UUID
	Amount    float64
	OrderPaid bool
}

type decision int

const (
	decisionNone decision = iota
	decisionSucceed
	decisionFail
	decisionCancel
	decisionRefund
)

// decide maps an event onto a state change given the current attempt and
// order status. Anything that does not match exactly is a stale no-op, so a
// failure arriving after a success can never revert a paid order.
func decide(evtType EventType, attempt AttemptStatus, ord order.OrderStatus) (decision, EventOutcome) {
	switch evtType {
	case EventSuccess:
		if attempt == StatusInitiated && ord == order.StatusPending {
			return decisionSucceed, OutcomeApplied
		}
	case EventFailure:
		if attempt == StatusInitiated {
			return decisionFail, OutcomeApplied
		}
	case EventCancellation:
		if attempt == StatusInitiated {
			return decisionCancel, OutcomeApplied
		}
	case EventRefund:
		if attempt == StatusSucceeded && ord == order.StatusRefundRequested {
			return decisionRefund, OutcomeApplied
		}
	}

	return decisionNone, OutcomeStale
}
