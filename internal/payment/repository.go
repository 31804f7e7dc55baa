package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vasiliy-maslov/movie-checkout/internal/order"
)

const (
	uniqueViolation        = "23505"
	oneInitiatedConstraint = "uq_payment_attempts_one_initiated"
)

type Repository interface {
	// CreateAttempt inserts the attempt after re-checking, under a lock on
	// the order row, that the order is still pending. A cancel or a webhook
	// success committed during the gateway call is seen here, not papered
	// over.
	CreateAttempt(ctx context.Context, attempt *Attempt) error
	HasInitiatedAttempt(ctx context.Context, orderID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Attempt, error)
	// ApplyEvent records the event in the dedup ledger and applies the
	// resulting state transition in one transaction. A second delivery of the
	// same event id returns OutcomeDuplicate without touching business state.
	ApplyEvent(ctx context.Context, evt Event) (*ApplyResult, error)
}

type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateAttempt(ctx context.Context, attempt *Attempt) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	var status order.OrderStatus
	err = tx.GetContext(ctx, &status,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, attempt.OrderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order.ErrOrderNotFound
		}
		return fmt.Errorf("repository: failed to lock order %s: %w", attempt.OrderID, err)
	}

	switch status {
	case order.StatusPending:
	case order.StatusPaid, order.StatusRefundRequested, order.StatusRefunded:
		return ErrAlreadyPaid
	default:
		return fmt.Errorf("%w: order is %s", ErrInvalidState, status)
	}

	query := `INSERT INTO payment_attempts (id, order_id, user_id, external_ref, status, amount)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		attempt.ID, attempt.OrderID, attempt.UserID, attempt.ExternalRef, string(attempt.Status), attempt.Amount,
	).Scan(&attempt.CreatedAt, &attempt.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation && pqErr.Constraint == oneInitiatedConstraint {
			return ErrPaymentInProgress
		}
		return fmt.Errorf("repository: failed to insert payment attempt: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("repository: failed to commit payment attempt: %w", err)
	}

	return nil
}

func (r *PostgresRepository) HasInitiatedAttempt(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM payment_attempts WHERE order_id = $1 AND status = 'initiated')`
	if err := r.db.GetContext(ctx, &exists, query, orderID); err != nil {
		return false, fmt.Errorf("repository: failed to check for initiated attempt: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Attempt, error) {
	query := `SELECT id, order_id, user_id, external_ref, status, amount, created_at, updated_at
	          FROM payment_attempts WHERE user_id = $1 ORDER BY created_at DESC`
	attempts := make([]Attempt, 0)
	if err := r.db.SelectContext(ctx, &attempts, query, userID); err != nil {
		return nil, fmt.Errorf("repository: failed to list payment attempts for user %s: %w", userID, err)
	}

	return attempts, nil
}

type lockedOrder struct {
	ID          uuid.UUID         `db:"id"`
	UserID      uuid.UUID         `db:"user_id"`
	Status      order.OrderStatus `db:"status"`
	TotalAmount float64           `db:"total_amount"`
}

func (r *PostgresRepository) ApplyEvent(ctx context.Context, evt Event) (res *ApplyResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	// The ledger insert is the idempotency barrier: a concurrent delivery of
	// the same event id blocks here until the first transaction commits, then
	// observes the conflict and stops. The external ref is stored even when
	// the event turns out orphaned, so operators can reconcile it later.
	tag, err := tx.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, external_ref, outcome) VALUES ($1, $2, 'received') ON CONFLICT (event_id) DO NOTHING`,
		evt.ID, evt.ExternalRef)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to insert webhook event: %w", err)
	}
	inserted, err := tag.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to read affected rows: %w", err)
	}
	if inserted == 0 {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("repository: failed to commit: %w", err)
		}
		return &ApplyResult{Outcome: OutcomeDuplicate}, nil
	}

	var attempt Attempt
	err = tx.GetContext(ctx, &attempt,
		`SELECT id, order_id, user_id, external_ref, status, amount, created_at, updated_at
		 FROM payment_attempts WHERE external_ref = $1 FOR UPDATE`,
		evt.ExternalRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r.finishEvent(ctx, tx, evt.ID, uuid.Nil, OutcomeOrphaned, &ApplyResult{Outcome: OutcomeOrphaned})
		}
		return nil, fmt.Errorf("repository: failed to resolve payment attempt: %w", err)
	}

	var ord lockedOrder
	err = tx.GetContext(ctx, &ord,
		`SELECT id, user_id, status, total_amount FROM orders WHERE id = $1 FOR UPDATE`,
		attempt.OrderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to lock order %s: %w", attempt.OrderID, err)
	}

	action, outcome := decide(evt.Type, attempt.Status, ord.Status)
	result := &ApplyResult{
		Outcome: outcome,
		OrderID: ord.ID,
		UserID:  ord.UserID,
		Amount:  attempt.Amount,
	}

	switch action {
	case decisionSucceed:
		if err = r.setAttemptStatus(ctx, tx, attempt.ID, StatusSucceeded); err != nil {
			return nil, err
		}
		if err = r.setOrderStatus(ctx, tx, ord.ID, order.StatusPending, order.StatusPaid); err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO purchases (user_id, movie_id)
			 SELECT $1, movie_id FROM order_items WHERE order_id = $2
			 ON CONFLICT (user_id, movie_id) DO NOTHING`,
			ord.UserID, ord.ID)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to record purchases for order %s: %w", ord.ID, err)
		}
		result.OrderPaid = true
	case decisionFail:
		if err = r.setAttemptStatus(ctx, tx, attempt.ID, StatusFailed); err != nil {
			return nil, err
		}
	case decisionCancel:
		if err = r.setAttemptStatus(ctx, tx, attempt.ID, StatusCanceled); err != nil {
			return nil, err
		}
	case decisionRefund:
		if err = r.setAttemptStatus(ctx, tx, attempt.ID, StatusRefunded); err != nil {
			return nil, err
		}
		if err = r.setOrderStatus(ctx, tx, ord.ID, order.StatusRefundRequested, order.StatusRefunded); err != nil {
			return nil, err
		}
	case decisionNone:
		// Replay or out-of-order event; the ledger row is still recorded.
	}

	return r.finishEvent(ctx, tx, evt.ID, ord.ID, outcome, result)
}

func (r *PostgresRepository) finishEvent(ctx context.Context, tx *sqlx.Tx, eventID string, orderID uuid.UUID, outcome EventOutcome, result *ApplyResult) (*ApplyResult, error) {
	var orderRef any
	if orderID != uuid.Nil {
		orderRef = orderID
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE webhook_events SET order_id = $1, outcome = $2 WHERE event_id = $3`,
		orderRef, string(outcome), eventID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to finalize webhook event %s: %w", eventID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("repository: failed to commit webhook event %s: %w", eventID, err)
	}

	return result, nil
}

func (r *PostgresRepository) setAttemptStatus(ctx context.Context, tx *sqlx.Tx, attemptID uuid.UUID, status AttemptStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payment_attempts SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), attemptID)
	if err != nil {
		return fmt.Errorf("repository: failed to update attempt %s status: %w", attemptID, err)
	}

	return nil
}

func (r *PostgresRepository) setOrderStatus(ctx context.Context, tx *sqlx.Tx, orderID uuid.UUID, from, to order.OrderStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		string(to), orderID, string(from))
	if err != nil {
		return fmt.Errorf("repository: failed to update order %s status: %w", orderID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository: failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// The order row is locked, so the guarded update can only miss if the
		// decision table and the database disagree.
		return fmt.Errorf("repository: order %s left state %s during reconciliation", orderID, from)
	}

	return nil
}
