package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/movie-checkout/internal/order"
)

// OrderGetter is the slice of the order service the payment flow needs.
type OrderGetter interface {
	Get(ctx context.Context, orderID, userID uuid.UUID) (*order.Order, error)
}

// Notifier sends the payment confirmation. Delivery is fire-and-forget: a
// send failure never rolls back the paid transition.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, userID, orderID uuid.UUID, amount float64) error
}

type Service interface {
	Start(ctx context.Context, orderID, userID uuid.UUID) (*Attempt, error)
	HandleEvent(ctx context.Context, evt Event) (*ApplyResult, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Attempt, error)
}

type service struct {
	repo      Repository
	orders    OrderGetter
	gateway   Gateway
	notifier  Notifier
	maxAmount float64
}

func NewService(repo Repository, orders OrderGetter, gateway Gateway, notifier Notifier, maxAmount float64) Service {
	return &service{
		repo:      repo,
		orders:    orders,
		gateway:   gateway,
		notifier:  notifier,
		maxAmount: maxAmount,
	}
}

func (s *service) Start(ctx context.Context, orderID, userID uuid.UUID) (*Attempt, error) {
	ord, err := s.orders.Get(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to get order for payment: %w", err)
	}

	switch ord.Status {
	case order.StatusPending:
	case order.StatusPaid, order.StatusRefundRequested, order.StatusRefunded:
		return nil, ErrAlreadyPaid
	default:
		return nil, fmt.Errorf("%w: status is %s", ErrInvalidState, ord.Status)
	}

	inProgress, err := s.repo.HasInitiatedAttempt(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to check outstanding attempts: %w", err)
	}
	if inProgress {
		return nil, ErrPaymentInProgress
	}

	// The frozen total is never recomputed, only re-checked against provider
	// limits.
	if ord.TotalAmount <= 0 || ord.TotalAmount > s.maxAmount {
		return nil, fmt.Errorf("%w: %.2f", ErrStaleTotal, ord.TotalAmount)
	}

	attemptID := uuid.New()
	session, err := s.gateway.CreateSession(ctx, SessionRequest{
		OrderID:        orderID,
		Amount:         ord.TotalAmount,
		Description:    describeOrder(ord),
		IdempotencyKey: attemptID.String(),
	})
	if err != nil {
		// Fail closed: no attempt row is created and the order stays pending.
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: gateway session creation failed")
		return nil, fmt.Errorf("service: failed to create payment session: %w", err)
	}

	attempt := &Attempt{
		ID:          attemptID,
		OrderID:     orderID,
		UserID:      userID,
		ExternalRef: session.Ref,
		Status:      StatusInitiated,
		Amount:      ord.TotalAmount,
	}
	if err := s.repo.CreateAttempt(ctx, attempt); err != nil {
		switch {
		case errors.Is(err, ErrPaymentInProgress),
			errors.Is(err, ErrAlreadyPaid),
			errors.Is(err, ErrInvalidState),
			errors.Is(err, order.ErrOrderNotFound):
			// Lost a race: a concurrent Start, webhook success or cancel
			// committed during the gateway call.
			return nil, err
		}
		return nil, fmt.Errorf("service: failed to create payment attempt: %w", err)
	}
	attempt.PaymentURL = session.URL

	log.Info().
		Stringer("attempt_id", attempt.ID).
		Stringer("order_id", orderID).
		Str("external_ref", attempt.ExternalRef).
		Float64("amount", attempt.Amount).
		Msg("service: payment attempt initiated")

	return attempt, nil
}

func (s *service) HandleEvent(ctx context.Context, evt Event) (*ApplyResult, error) {
	result, err := s.repo.ApplyEvent(ctx, evt)
	if err != nil {
		return nil, fmt.Errorf("service: failed to apply webhook event %s: %w", evt.ID, err)
	}

	switch result.Outcome {
	case OutcomeOrphaned:
		// Acked so the provider stops retrying, but kept visible for operators.
		log.Warn().Str("event_id", evt.ID).Str("external_ref", evt.ExternalRef).Msg("service: orphaned webhook event recorded")
	case OutcomeDuplicate:
		log.Debug().Str("event_id", evt.ID).Msg("service: duplicate webhook event ignored")
	case OutcomeStale:
		log.Info().Str("event_id", evt.ID).Str("type", string(evt.Type)).Msg("service: stale webhook event ignored")
	}

	if result.OrderPaid {
		if err := s.notifier.PaymentConfirmed(ctx, result.UserID, result.OrderID, result.Amount); err != nil {
			log.Error().Err(err).Stringer("order_id", result.OrderID).Msg("service: failed to send payment confirmation")
		}
		log.Info().Stringer("order_id", result.OrderID).Float64("amount", result.Amount).Msg("service: order paid")
	}

	return result, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]Attempt, error) {
	attempts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list payments: %w", err)
	}

	return attempts, nil
}

func describeOrder(ord *order.Order) string {
	names := make([]string, 0, len(ord.Items))
	for _, item := range ord.Items {
		names = append(names, item.Name)
	}
	return strings.Join(names, " ")
}
