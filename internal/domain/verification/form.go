package verification

import (
	"strings"
	"time"

	"github.com/coinly/coinadmin-api/internal/domain/transaction"
)

// Form is the operator's verification draft for the focused transaction.
// It is seeded from the transaction's own figures so the default review is
// "the receipt matches what was claimed"; the operator edits only on
// mismatch.
type Form struct {
	ObservedAmount        *float64   `json:"observed_amount"`
	ReceiptDateObserved   *time.Time `json:"receipt_date_observed"`
	VerificationConfirmed bool       `json:"verification_confirmed"`
	RejectionNote         string     `json:"rejection_note"`
	AdminNotes            string     `json:"admin_notes"`
}

// NewForm seeds form defaults from tx. VerificationConfirmed always starts
// false; confirmation is an explicit operator act, never carried over.
func NewForm(tx *transaction.Transaction) *Form {
	form := &Form{}
	if tx != nil {
		form.ObservedAmount = tx.BillAmount
		form.ReceiptDateObserved = tx.BillDate
	}
	return form
}

// FormPatch is a partial form update; nil fields are left untouched
type FormPatch struct {
	ObservedAmount        *float64   `json:"observed_amount"`
	ReceiptDateObserved   *time.Time `json:"receipt_date_observed"`
	VerificationConfirmed *bool      `json:"verification_confirmed"`
	RejectionNote         *string    `json:"rejection_note"`
	AdminNotes            *string    `json:"admin_notes"`
}

// Apply merges a patch into the form
func (f *Form) Apply(p FormPatch) {
	if p.ObservedAmount != nil {
		f.ObservedAmount = p.ObservedAmount
	}
	if p.ReceiptDateObserved != nil {
		f.ReceiptDateObserved = p.ReceiptDateObserved
	}
	if p.VerificationConfirmed != nil {
		f.VerificationConfirmed = *p.VerificationConfirmed
	}
	if p.RejectionNote != nil {
		f.RejectionNote = *p.RejectionNote
	}
	if p.AdminNotes != nil {
		f.AdminNotes = *p.AdminNotes
	}
}

// ValidateApprove checks the form is complete enough to approve
func (f *Form) ValidateApprove() error {
	if f.ObservedAmount == nil {
		return &ValidationError{Field: "observed_amount", Message: "observed amount is required"}
	}
	if *f.ObservedAmount < 0 {
		return &ValidationError{Field: "observed_amount", Message: "observed amount cannot be negative"}
	}
	if f.ReceiptDateObserved == nil {
		return &ValidationError{Field: "receipt_date_observed", Message: "observed receipt date is required"}
	}
	if !f.VerificationConfirmed {
		return &ValidationError{Field: "verification_confirmed", Message: "verification must be confirmed before approval"}
	}
	return nil
}

// ValidateReject checks a rejection note was provided
func (f *Form) ValidateReject() error {
	if strings.TrimSpace(f.RejectionNote) == "" {
		return &ValidationError{Field: "rejection_note", Message: "rejection note is required"}
	}
	return nil
}
