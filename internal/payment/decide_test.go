package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vasiliy-maslov/movie-checkout/internal/order"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		evtType     EventType
		attempt     AttemptStatus
		order       order.OrderStatus
		wantAction  decision
		wantOutcome EventOutcome
	}{
		{"success_applies", EventSuccess, StatusInitiated, order.StatusPending, decisionSucceed, OutcomeApplied},
		{"success_replay_on_paid_order", EventSuccess, StatusSucceeded, order.StatusPaid, decisionNone, OutcomeStale},
		{"success_on_canceled_order", EventSuccess, StatusInitiated, order.StatusCanceled, decisionNone, OutcomeStale},
		{"failure_applies", EventFailure, StatusInitiated, order.StatusPending, decisionFail, OutcomeApplied},
		{"failure_after_success_does_not_revert", EventFailure, StatusSucceeded, order.StatusPaid, decisionNone, OutcomeStale},
		{"cancellation_applies", EventCancellation, StatusInitiated, order.StatusPending, decisionCancel, OutcomeApplied},
		{"cancellation_after_success_ignored", EventCancellation, StatusSucceeded, order.StatusPaid, decisionNone, OutcomeStale},
		{"refund_applies", EventRefund, StatusSucceeded, order.StatusRefundRequested, decisionRefund, OutcomeApplied},
		{"refund_without_request_ignored", EventRefund, StatusSucceeded, order.StatusPaid, decisionNone, OutcomeStale},
		{"refund_on_failed_attempt_ignored", EventRefund, StatusFailed, order.StatusRefundRequested, decisionNone, OutcomeStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, outcome := decide(tt.evtType, tt.attempt, tt.order)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantOutcome, outcome)
		})
	}
}
