package service

import (
	"context"
	"errors"
	"log"
	"time"

	"creditshop/internal/database"
	"creditshop/internal/models"
	"creditshop/internal/ws"
	"creditshop/pkg/asaas"

	"gorm.io/gorm"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Webhook event names, as Asaas sends them.
var (
	confirmEvents = map[string]bool{
		"PAYMENT_CONFIRMED":        true,
		"PAYMENT_RECEIVED":         true,
		"PAYMENT_RECEIVED_IN_CASH": true,
	}
	cancelEvents = map[string]bool{
		"PAYMENT_CANCELLED": true,
		"PAYMENT_DELETED":   true,
	}
	refundEvents = map[string]bool{
		"PAYMENT_REFUNDED":   true,
		"PAYMENT_CHARGEBACK": true,
		"PAYMENT_REVERSED":   true,
	}
)

type StatusResult struct {
	Status         string     `json:"status"`
	UpdatedCredits *int64     `json:"updated_credits,omitempty"`
	PaidAt         *time.Time `json:"paid_at"`
}

// WebhookEvent is the payload Asaas pushes.
type WebhookEvent struct {
	Event   string          `json:"event"`
	Payment *WebhookPayment `json:"payment"`
}

type WebhookPayment struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PaymentDate   string `json:"paymentDate"`
	ConfirmedDate string `json:"confirmedDate"`
}

// ReconcileService is the settlement state machine, entered from polling and
// from webhooks. Both paths row-lock the transaction and re-check its status
// inside the lock, so however many confirmation signals arrive, credits are
// granted exactly once.
type ReconcileService struct {
	db  *gorm.DB
	hub *ws.PaymentHub
}

func NewReconcileService(db *gorm.DB, hub *ws.PaymentHub) *ReconcileService {
	return &ReconcileService{db: db, hub: hub}
}

// PollStatus answers "is it paid yet?" for the payment's owner. A transaction
// already CONFIRMED locally is answered from the ledger without touching the
// gateway. Gateway failures degrade to PENDING instead of erroring: the
// client just polls again.
func (s *ReconcileService) PollStatus(ctx context.Context, gw Gateway, userID uint, paymentID string) (*StatusResult, error) {
	var txn models.Transaction
	err := s.db.Where("asaas_payment_id = ? AND user_id = ?", paymentID, userID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	if txn.Status == models.StatusConfirmed {
		var user models.User
		if err := s.db.First(&user, userID).Error; err != nil {
			return nil, err
		}
		return &StatusResult{Status: models.StatusConfirmed, UpdatedCredits: &user.Credits, PaidAt: txn.PaidAt}, nil
	}

	payment, err := gw.GetPayment(ctx, paymentID)
	if err != nil {
		log.Printf("[STATUS] gateway query failed for %s: %v", paymentID, err)
		return &StatusResult{Status: models.StatusPending}, nil
	}
	if !payment.Settled() {
		status := payment.Status
		if status == "" {
			status = models.StatusPending
		}
		return &StatusResult{Status: status}, nil
	}

	var (
		credits int64
		paidAt  *time.Time
	)
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var locked models.Transaction
		if err := database.LockForUpdate(tx).First(&locked, txn.ID).Error; err != nil {
			return err
		}
		// A webhook may have settled it between our first read and the lock.
		if locked.Status == models.StatusConfirmed {
			var user models.User
			if err := tx.First(&user, userID).Error; err != nil {
				return err
			}
			credits = user.Credits
			paidAt = locked.PaidAt
			return nil
		}
		c, p, err := confirmLocked(tx, &locked, payment.Status,
			asaas.ParseDate(payment.PaymentDate), asaas.ParseDate(payment.ConfirmedDate))
		if err != nil {
			return err
		}
		credits, paidAt = c, &p
		return nil
	})
	if err != nil {
		log.Printf("[STATUS] settlement failed for %s: %v", paymentID, err)
		return &StatusResult{Status: models.StatusPending}, nil
	}
	return &StatusResult{Status: models.StatusConfirmed, UpdatedCredits: &credits, PaidAt: paidAt}, nil
}

// ProcessWebhook applies one gateway event. Unknown payment references and
// unrecognized events are no-ops: the caller always acks so the gateway
// never retries something we have already durably recorded.
func (s *ReconcileService) ProcessWebhook(evt WebhookEvent) error {
	if evt.Payment == nil || evt.Payment.ID == "" {
		return nil
	}
	isConfirm := confirmEvents[evt.Event]
	isCancel := cancelEvents[evt.Event]
	isRefund := refundEvents[evt.Event]

	gwPaymentDate := asaas.ParseDate(evt.Payment.PaymentDate)
	gwConfirmedDate := asaas.ParseDate(evt.Payment.ConfirmedDate)

	var confirmed *ws.PaymentConfirmed
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txn models.Transaction
		err := database.LockForUpdate(tx).
			Where("asaas_payment_id = ?", evt.Payment.ID).
			First(&txn).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		// The gateway's view is mirrored whatever the event turns out to be.
		txn.AsaasStatus = strPtr(evt.Payment.Status)
		if gwPaymentDate != nil {
			txn.AsaasPaymentDate = gwPaymentDate
		}
		if gwConfirmedDate != nil {
			txn.AsaasConfirmedDate = gwConfirmedDate
		}

		if isConfirm && txn.Status == models.StatusPending {
			credits, paidAt, err := confirmLocked(tx, &txn, evt.Payment.Status, gwPaymentDate, gwConfirmedDate)
			if err != nil {
				return err
			}
			confirmed = &ws.PaymentConfirmed{
				PaymentID:      txn.AsaasPaymentID,
				UpdatedCredits: credits,
				PaidAt:         paidAt.UTC().Format(time.RFC3339),
			}
			return nil
		}

		if (isCancel || isRefund) && txn.Status == models.StatusConfirmed {
			if err := clawbackLocked(tx, &txn); err != nil {
				return err
			}
			if isRefund {
				txn.Status = models.StatusRefunded
			} else {
				txn.Status = models.StatusCancelled
			}
			return tx.Save(&txn).Error
		}

		return tx.Save(&txn).Error
	})
	if err != nil {
		return err
	}
	// Push after commit so watchers never see a settlement that rolled back.
	if confirmed != nil && s.hub != nil {
		paidAt, _ := time.Parse(time.RFC3339, confirmed.PaidAt)
		s.hub.PublishConfirmed(confirmed.PaymentID, confirmed.UpdatedCredits, paidAt)
	}
	return nil
}

// confirmLocked flips a row-locked PENDING transaction to CONFIRMED: credits
// the owner, stamps the settlement time (gateway confirmation date, else
// gateway payment date, else now), snapshots the gateway status and consumes
// the coupon. Caller must hold the transaction row lock.
func confirmLocked(tx *gorm.DB, txn *models.Transaction, gwStatus string, gwPaymentDate, gwConfirmedDate *time.Time) (int64, time.Time, error) {
	var user models.User
	if err := database.LockForUpdate(tx).First(&user, txn.UserID).Error; err != nil {
		return 0, time.Time{}, err
	}
	if err := tx.Model(&user).UpdateColumn("credits", gorm.Expr("credits + ?", txn.Quantity)).Error; err != nil {
		return 0, time.Time{}, err
	}

	paidAt := *settlementTime(gwConfirmedDate, gwPaymentDate)
	txn.Status = models.StatusConfirmed
	txn.PaidAt = &paidAt
	txn.AsaasStatus = strPtr(gwStatus)
	if gwPaymentDate != nil {
		txn.AsaasPaymentDate = gwPaymentDate
	}
	if gwConfirmedDate != nil {
		txn.AsaasConfirmedDate = gwConfirmedDate
	}
	if err := tx.Save(txn).Error; err != nil {
		return 0, time.Time{}, err
	}
	if err := incrementCouponUses(tx, txn.CouponCode); err != nil {
		return 0, time.Time{}, err
	}
	return user.Credits + txn.Quantity, paidAt, nil
}

// clawbackLocked removes the credits a confirmed transaction granted,
// flooring at zero: the user may have spent some already, and a double
// refund event must not drive the balance negative.
func clawbackLocked(tx *gorm.DB, txn *models.Transaction) error {
	var user models.User
	if err := database.LockForUpdate(tx).First(&user, txn.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	toRemove := txn.Quantity
	if user.Credits < toRemove {
		toRemove = user.Credits
	}
	if toRemove > 0 {
		if err := tx.Model(&user).UpdateColumn("credits", gorm.Expr("credits - ?", toRemove)).Error; err != nil {
			return err
		}
	}
	return nil
}

// incrementCouponUses consumes one use of the referenced coupon under a row
// lock. Called only on the single PENDING→CONFIRMED transition, so a coupon
// is incremented at most once per transaction.
func incrementCouponUses(tx *gorm.DB, code *string) error {
	if code == nil || *code == "" {
		return nil
	}
	var coupon models.Coupon
	err := database.LockForUpdate(tx).Where("code = ?", *code).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	return tx.Model(&coupon).UpdateColumn("uses_count", gorm.Expr("uses_count + ?", 1)).Error
}

// settlementTime prefers the gateway's confirmation date, then its payment
// date, then the local clock.
func settlementTime(confirmedDate, paymentDate *time.Time) *time.Time {
	if confirmedDate != nil {
		return confirmedDate
	}
	if paymentDate != nil {
		return paymentDate
	}
	now := time.Now()
	return &now
}
