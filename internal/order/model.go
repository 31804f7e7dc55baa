package order

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusPaid            OrderStatus = "paid"
	StatusCanceled        OrderStatus = "canceled"
	StatusRefundRequested OrderStatus = "refund_requested"
	StatusRefunded        OrderStatus = "refunded"
)

func (os OrderStatus) String() string {
	return string(os)
}

// allowedTransitions is the single definition of the order lifecycle.
// Every status write goes through a guarded update against it; canceled
// and refunded are terminal.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusPaid:     true,
		StatusCanceled: true,
	},
	StatusPaid: {
		StatusRefundRequested: true,
	},
	StatusRefundRequested: {
		StatusRefunded: true,
	},
	StatusCanceled: {},
	StatusRefunded: {},
}

func CanTransition(from, to OrderStatus) bool {
	return allowedTransitions[from][to]
}

type OrderItem struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OrderID      uuid.UUID `json:"order_id" db:"order_id"`
	MovieID      uuid.UUID `json:"movie_id" db:"movie_id"`
	Name         string    `json:"name" db:"name"`
	PriceAtOrder float64   `json:"price_at_order" db:"price_at_order"`
}

type Order struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	UserID      uuid.UUID   `json:"user_id" db:"user_id"`
	Status      OrderStatus `json:"status" db:"status"`
	Items       []OrderItem `json:"items" db:"-"`
	TotalAmount float64     `json:"total_amount" db:"total_amount"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// UnavailableItem reports a cart item excluded from a build because it no
// longer passed validation at checkout time.
type UnavailableItem struct {
	MovieID uuid.UUID `json:"movie_id"`
	Reason  string    `json:"reason"`
}
