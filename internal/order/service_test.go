package order_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/vasiliy-maslov/movie-checkout/internal/order"
)

type mockOrderRepository struct {
	buildFromCartFunc    func(ctx context.Context, userID uuid.UUID, region string) (*order.Order, []order.UnavailableItem, error)
	getByIDFunc          func(ctx context.Context, id uuid.UUID) (*order.Order, error)
	listByUserFunc       func(ctx context.Context, userID uuid.UUID) ([]order.Order, error)
	updateStatusFromFunc func(ctx context.Context, orderID uuid.UUID, from, to order.OrderStatus) (bool, error)
}

func (m *mockOrderRepository) BuildFromCart(ctx context.Context, userID uuid.UUID, region string) (*order.Order, []order.UnavailableItem, error) {
	return m.buildFromCartFunc(ctx, userID, region)
}

func (m *mockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	return m.listByUserFunc(ctx, userID)
}

func (m *mockOrderRepository) UpdateStatusFrom(ctx context.Context, orderID uuid.UUID, from, to order.OrderStatus) (bool, error) {
	return m.updateStatusFromFunc(ctx, orderID, from, to)
}

type mockRefundGateway struct {
	issueRefundFunc func(ctx context.Context, orderID uuid.UUID, amount float64, idempotencyKey string) error
}

func (m *mockRefundGateway) IssueRefund(ctx context.Context, orderID uuid.UUID, amount float64, idempotencyKey string) error {
	return m.issueRefundFunc(ctx, orderID, amount, idempotencyKey)
}

var (
	testUserID  = uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")
	testOrderID = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
)

func TestService_Build(t *testing.T) {
	tests := []struct {
		name              string
		buildFromCartFunc func(ctx context.Context, userID uuid.UUID, region string) (*order.Order, []order.UnavailableItem, error)
		wantErrIs         error
		wantWarnings      int
	}{
		{
			name: "success_with_excluded_item",
			buildFromCartFunc: func(ctx context.Context, userID uuid.UUID, region string) (*order.Order, []order.UnavailableItem, error) {
				return &order.Order{ID: testOrderID, UserID: userID, Status: order.StatusPending, TotalAmount: 12},
					[]order.UnavailableItem{{MovieID: uuid.New(), Reason: "unavailable"}}, nil
			},
			wantWarnings: 1,
		},
		{
			name: "empty_cart",
			buildFromCartFunc: func(ctx context.Context, userID uuid.UUID, region string) (*order.Order, []order.UnavailableItem, error) {
				return nil, nil, order.ErrEmptyCart
			},
			wantErrIs: order.ErrEmptyCart,
		},
		{
			name: "nothing_purchasable_left",
			buildFromCartFunc: func(ctx context.Context, userID uuid.UUID, region string) (*order.Order, []order.UnavailableItem, error) {
				return nil, []order.UnavailableItem{{MovieID: uuid.New(), Reason: "unavailable"}}, order.ErrNoPurchasableItems
			},
			wantErrIs: order.ErrNoPurchasableItems,
		},
		{
			name: "duplicate_pending_order",
			buildFromCartFunc: func(ctx context.Context, userID uuid.UUID, region string) (*order.Order, []order.UnavailableItem, error) {
				return nil, nil, order.ErrDuplicateOrder
			},
			wantErrIs: order.ErrDuplicateOrder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := order.NewService(&mockOrderRepository{buildFromCartFunc: tt.buildFromCartFunc}, &mockRefundGateway{})

			ord, warnings, err := svc.Build(context.Background(), testUserID, "US")
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "expected %v, got %v", tt.wantErrIs, err)
				assert.Nil(t, ord)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, order.StatusPending, ord.Status)
			assert.Len(t, warnings, tt.wantWarnings)
		})
	}
}

func TestService_Cancel(t *testing.T) {
	tests := []struct {
		name      string
		status    order.OrderStatus
		owner     uuid.UUID
		updated   bool
		wantErrIs error
	}{
		{
			name:    "pending_order_is_cancelable",
			status:  order.StatusPending,
			owner:   testUserID,
			updated: true,
		},
		{
			name:      "paid_order_requires_refund_path",
			status:    order.StatusPaid,
			owner:     testUserID,
			wantErrIs: order.ErrInvalidTransition,
		},
		{
			name:      "canceled_is_terminal",
			status:    order.StatusCanceled,
			owner:     testUserID,
			wantErrIs: order.ErrInvalidTransition,
		},
		{
			name:      "foreign_order_reported_absent",
			status:    order.StatusPending,
			owner:     uuid.MustParse("999e8400-e29b-41d4-a716-446655440000"),
			wantErrIs: order.ErrOrderNotFound,
		},
		{
			name:      "race_loser_gets_invalid_transition",
			status:    order.StatusPending,
			owner:     testUserID,
			updated:   false,
			wantErrIs: order.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockOrderRepository{
				getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
					return &order.Order{ID: testOrderID, UserID: tt.owner, Status: tt.status}, nil
				},
				updateStatusFromFunc: func(ctx context.Context, orderID uuid.UUID, from, to order.OrderStatus) (bool, error) {
					assert.Equal(t, order.StatusCanceled, to)
					return tt.updated, nil
				},
			}
			svc := order.NewService(repo, &mockRefundGateway{})

			err := svc.Cancel(context.Background(), testOrderID, testUserID)
			if tt.wantErrIs != nil {
				assert.True(t, errors.Is(err, tt.wantErrIs), "expected %v, got %v", tt.wantErrIs, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestService_RequestRefund(t *testing.T) {
	t.Run("paid_order_moves_to_refund_requested", func(t *testing.T) {
		var gotKey string
		repo := &mockOrderRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return &order.Order{ID: testOrderID, UserID: testUserID, Status: order.StatusPaid, TotalAmount: 12}, nil
			},
			updateStatusFromFunc: func(ctx context.Context, orderID uuid.UUID, from, to order.OrderStatus) (bool, error) {
				assert.Equal(t, order.StatusPaid, from)
				assert.Equal(t, order.StatusRefundRequested, to)
				return true, nil
			},
		}
		gateway := &mockRefundGateway{
			issueRefundFunc: func(ctx context.Context, orderID uuid.UUID, amount float64, key string) error {
				gotKey = key
				assert.Equal(t, 12.0, amount)
				return nil
			},
		}

		err := order.NewService(repo, gateway).RequestRefund(context.Background(), testOrderID, testUserID)
		assert.NoError(t, err)
		assert.Equal(t, "refund-"+testOrderID.String(), gotKey)
	})

	t.Run("pending_order_cannot_be_refunded", func(t *testing.T) {
		repo := &mockOrderRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return &order.Order{ID: testOrderID, UserID: testUserID, Status: order.StatusPending}, nil
			},
		}
		err := order.NewService(repo, &mockRefundGateway{}).RequestRefund(context.Background(), testOrderID, testUserID)
		assert.True(t, errors.Is(err, order.ErrInvalidTransition))
	})

	t.Run("gateway_failure_keeps_refund_requested", func(t *testing.T) {
		repo := &mockOrderRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				return &order.Order{ID: testOrderID, UserID: testUserID, Status: order.StatusPaid, TotalAmount: 12}, nil
			},
			updateStatusFromFunc: func(ctx context.Context, orderID uuid.UUID, from, to order.OrderStatus) (bool, error) {
				return true, nil
			},
		}
		gateway := &mockRefundGateway{
			issueRefundFunc: func(ctx context.Context, orderID uuid.UUID, amount float64, key string) error {
				return errors.New("gateway timeout")
			},
		}

		err := order.NewService(repo, gateway).RequestRefund(context.Background(), testOrderID, testUserID)
		assert.True(t, errors.Is(err, order.ErrRefundGateway))
	})

	t.Run("retry_reissues_refund_with_same_key", func(t *testing.T) {
		calls := 0
		repo := &mockOrderRepository{
			getByIDFunc: func(ctx context.Context, id uuid.UUID) (*order.Order, error) {
				// Already transitioned by the failed attempt before.
				return &order.Order{ID: testOrderID, UserID: testUserID, Status: order.StatusRefundRequested, TotalAmount: 12}, nil
			},
			updateStatusFromFunc: func(ctx context.Context, orderID uuid.UUID, from, to order.OrderStatus) (bool, error) {
				t.Fatal("no transition expected on retry")
				return false, nil
			},
		}
		gateway := &mockRefundGateway{
			issueRefundFunc: func(ctx context.Context, orderID uuid.UUID, amount float64, key string) error {
				calls++
				assert.Equal(t, "refund-"+testOrderID.String(), key)
				return nil
			},
		}

		err := order.NewService(repo, gateway).RequestRefund(context.Background(), testOrderID, testUserID)
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}
