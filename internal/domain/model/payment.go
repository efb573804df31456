package model

import (
	"strings"
	"time"

	"telegram-invoicing-bot/internal/domain"
)

type PaymentAction string

const (
	PaymentActionCreate  PaymentAction = "create" // onboarding of a new company on a paid plan
	PaymentActionRenew   PaymentAction = "renew"
	PaymentActionUpgrade PaymentAction = "upgrade"
)

type PaymentMethod string

const (
	PaymentMethodMobile PaymentMethod = "mobile" // mobile money
	PaymentMethodBank   PaymentMethod = "bank"   // bank transfer
)

func ParsePaymentAction(s string) (PaymentAction, error) {
	switch a := PaymentAction(strings.ToLower(s)); a {
	case PaymentActionCreate, PaymentActionRenew, PaymentActionUpgrade:
		return a, nil
	}
	return "", domain.ErrInvalidArgument
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch m := PaymentMethod(strings.ToLower(s)); m {
	case PaymentMethodMobile, PaymentMethodBank:
		return m, nil
	}
	return "", domain.ErrInvalidArgument
}

// PaymentIntent lives in the session from method selection until proof or cancel.
type PaymentIntent struct {
	Plan   PlanTier      `json:"plan"`
	Action PaymentAction `json:"action"`
	Method PaymentMethod `json:"method"`
}

func (i PaymentIntent) Valid() bool {
	if !i.Plan.IsPaid() {
		return false
	}
	if _, err := ParsePaymentAction(string(i.Action)); err != nil {
		return false
	}
	_, err := ParsePaymentMethod(string(i.Method))
	return err == nil
}

type ProofKind string

const (
	ProofText ProofKind = "text"
	ProofFile ProofKind = "file"
)

// Proof is what the user sent as evidence of payment: a transaction reference or a file.
type Proof struct {
	Kind     ProofKind `json:"kind"`
	Text     string    `json:"text,omitempty"`
	FileID   string    `json:"file_id,omitempty"`
	FileKind string    `json:"file_kind,omitempty"` // photo | document
}

type PaymentStatus string

const (
	PaymentStatusPendingReview PaymentStatus = "pending_review"
	PaymentStatusApproved      PaymentStatus = "approved"
	PaymentStatusRejected      PaymentStatus = "rejected"
)

// PaymentSubmission is handed to the external reviewer.
type PaymentSubmission struct {
	CompanyID  int64         `json:"company_id"`
	UserID     int64         `json:"user_id,omitempty"`
	TelegramID int64         `json:"telegram_id"`
	Intent     PaymentIntent `json:"intent"`
	Proof      Proof         `json:"proof"`
	Amount     int64         `json:"amount"`
	Currency   string        `json:"currency"`
}

type PaymentRecord struct {
	ID          string            `json:"id"`
	Submission  PaymentSubmission `json:"submission"`
	Status      PaymentStatus     `json:"status"`
	SubmittedAt time.Time         `json:"submitted_at"`
}
