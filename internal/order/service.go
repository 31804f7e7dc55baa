package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrRefundGateway     = errors.New("refund request was not accepted by the payment gateway")
)

// RefundGateway issues refunds at the external provider. Calls are idempotent
// on the supplied key, so retrying a failed request cannot refund twice.
type RefundGateway interface {
	IssueRefund(ctx context.Context, orderID uuid.UUID, amount float64, idempotencyKey string) error
}

type Service interface {
	Build(ctx context.Context, userID uuid.UUID, region string) (*Order, []UnavailableItem, error)
	Get(ctx context.Context, orderID, userID uuid.UUID) (*Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error)
	Cancel(ctx context.Context, orderID, userID uuid.UUID) error
	RequestRefund(ctx context.Context, orderID, userID uuid.UUID) error
}

type service struct {
	repo    Repository
	refunds RefundGateway
}

func NewService(repo Repository, refunds RefundGateway) Service {
	return &service{repo: repo, refunds: refunds}
}

func (s *service) Build(ctx context.Context, userID uuid.UUID, region string) (*Order, []UnavailableItem, error) {
	ord, warnings, err := s.repo.BuildFromCart(ctx, userID, region)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrNoPurchasableItems), errors.Is(err, ErrDuplicateOrder):
			return nil, warnings, err
		default:
			log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to build order")
			return nil, nil, fmt.Errorf("service: failed to build order: %w", err)
		}
	}

	log.Info().
		Stringer("order_id", ord.ID).
		Stringer("user_id", userID).
		Float64("total_amount", ord.TotalAmount).
		Int("excluded_items", len(warnings)).
		Msg("service: order created")

	return ord, warnings, nil
}

func (s *service) Get(ctx context.Context, orderID, userID uuid.UUID) (*Order, error) {
	ord, err := s.getOwned(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	return ord, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return orders, nil
}

// Cancel is only permitted while the order is pending. A paid order must go
// through the refund path instead.
func (s *service) Cancel(ctx context.Context, orderID, userID uuid.UUID) error {
	ord, err := s.getOwned(ctx, orderID, userID)
	if err != nil {
		return err
	}

	if err := s.transition(ctx, ord, StatusCanceled); err != nil {
		return err
	}

	log.Info().Stringer("order_id", orderID).Msg("service: order canceled")

	return nil
}

func (s *service) RequestRefund(ctx context.Context, orderID, userID uuid.UUID) error {
	ord, err := s.getOwned(ctx, orderID, userID)
	if err != nil {
		return err
	}

	// A retry after a failed gateway call finds the order already in
	// refund_requested; re-issuing with the same key is safe.
	if ord.Status != StatusRefundRequested {
		if err := s.transition(ctx, ord, StatusRefundRequested); err != nil {
			return err
		}
	}

	key := "refund-" + orderID.String()
	if err := s.refunds.IssueRefund(ctx, orderID, ord.TotalAmount, key); err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: refund call failed, order stays refund_requested")
		return fmt.Errorf("%w: %v", ErrRefundGateway, err)
	}

	log.Info().Stringer("order_id", orderID).Float64("amount", ord.TotalAmount).Msg("service: refund requested")

	return nil
}

func (s *service) getOwned(ctx context.Context, orderID, userID uuid.UUID) (*Order, error) {
	ord, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("service: failed to get order: %w", err)
	}

	// Another user's order is reported as absent, not as forbidden.
	if ord.UserID != userID {
		return nil, ErrOrderNotFound
	}

	return ord, nil
}

func (s *service) transition(ctx context.Context, ord *Order, to OrderStatus) error {
	if !CanTransition(ord.Status, to) {
		log.Warn().
			Stringer("order_id", ord.ID).
			Stringer("current_status", ord.Status).
			Stringer("new_status", to).
			Msg("service: invalid status transition attempt")
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ord.Status, to)
	}

	updated, err := s.repo.UpdateStatusFrom(ctx, ord.ID, ord.Status, to)
	if err != nil {
		return fmt.Errorf("service: failed to update order status: %w", err)
	}
	if !updated {
		// Lost a race: the status moved underneath us between read and write.
		return fmt.Errorf("%w: order %s is no longer %s", ErrInvalidTransition, ord.ID, ord.Status)
	}

	ord.Status = to

	return nil
}
