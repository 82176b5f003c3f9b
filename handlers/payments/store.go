package payments

import (
	"errors"
	"log/slog"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hilla1/server/models"
)

// TransactionStore persists STK push attempts. Terminal transitions go
// through Finalize so the Pending guard is a single atomic update.
type TransactionStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewTransactionStore(db *gorm.DB, logger *slog.Logger) *TransactionStore {
	return &TransactionStore{db: db, logger: logger}
}

func (s *TransactionStore) Create(tx *models.MpesaTransaction) error {
	if err := s.db.Create(tx).Error; err != nil {
		s.logger.Error("Failed to create mpesa transaction",
			"checkout_request_id", tx.CheckoutRequestID, "error", err)
		return err
	}
	return nil
}

func (s *TransactionStore) ByCheckoutID(checkoutRequestID string) (*models.MpesaTransaction, error) {
	var tx models.MpesaTransaction
	err := s.db.Where("checkout_request_id = ?", checkoutRequestID).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (s *TransactionStore) ByID(id uint) (*models.MpesaTransaction, error) {
	var tx models.MpesaTransaction
	err := s.db.First(&tx, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

// TerminalUpdate is everything a reconciliation may write onto a Pending
// transaction. Optional fields are applied only when set.
type TerminalUpdate struct {
	Status          string
	ResultCode      int
	ResultDesc      string
	ReceiptNumber   string
	TransactionDate string
	Phone           string
	Amount          int64
	RawCallback     []byte
}

// Finalize moves a Pending transaction to its terminal state. The update is
// guarded on status so a duplicate callback or a racing status poll cannot
// overwrite an outcome; it reports whether this call won the transition.
func (s *TransactionStore) Finalize(checkoutRequestID string, update TerminalUpdate) (bool, error) {
	values := map[string]interface{}{
		"status":      update.Status,
		"result_code": update.ResultCode,
		"result_desc": update.ResultDesc,
	}
	if update.ReceiptNumber != "" {
		values["mpesa_receipt_number"] = update.ReceiptNumber
	}
	if update.TransactionDate != "" {
		values["transaction_date"] = update.TransactionDate
	}
	if update.Phone != "" {
		values["phone"] = update.Phone
	}
	if update.Amount > 0 {
		values["amount"] = update.Amount
	}
	if update.RawCallback != nil {
		values["raw_callback"] = datatypes.JSON(update.RawCallback)
	}

	result := s.db.Model(&models.MpesaTransaction{}).
		Where("checkout_request_id = ? AND status = ?", checkoutRequestID, models.StatusPending).
		Updates(values)
	if result.Error != nil {
		s.logger.Error("Failed to finalize mpesa transaction",
			"checkout_request_id", checkoutRequestID, "status", update.Status, "error", result.Error)
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		s.logger.Info("Skipped duplicate terminal update",
			"checkout_request_id", checkoutRequestID, "status", update.Status)
		return false, nil
	}

	s.logger.Info("Mpesa transaction finalized",
		"checkout_request_id", checkoutRequestID, "status", update.Status, "result_code", update.ResultCode)
	return true, nil
}
