package models

import "time"

type PaymentStatus string

const (
	OrderUnpaid    PaymentStatus = "unpaid"
	OrderVerifying PaymentStatus = "verifying"
	OrderPaid      PaymentStatus = "paid"
	OrderCancelled PaymentStatus = "cancelled"
	OrderTimedOut  PaymentStatus = "timed_out"
	OrderRefunded  PaymentStatus = "refunded"
)

type PaymentType string

const (
	PaymentSubscription PaymentType = "subscription"
	PaymentDaoCreation  PaymentType = "dao_creation"
	PaymentAward        PaymentType = "award"
	PaymentVerification PaymentType = "verification"
)

type PaymentOrder struct {
	ID           int64
	Payer        string
	Amount       int64
	AmountPaid   int64
	Token        string
	PaymentType  PaymentType
	Source       string
	Status       PaymentStatus
	CreatedTime  time.Time
	VerifiedTime *time.Time
	SharedTime   *time.Time
}

// PaymentInfo is the externally visible invoice returned on order creation.
// Recipient is the derived 32-byte collection subaccount.
type PaymentInfo struct {
	ID          int64
	Recipient   []byte
	Token       string
	Amount      int64
	PaymentType PaymentType
	CreatedTime time.Time
}

// QueryOrder is a PaymentOrder with its collection subaccount attached for
// listing responses. The subaccount is recomputed on demand, never stored.
type QueryOrder struct {
	PaymentOrder
	Recipient []byte
}
