package subscription

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusRefunded Status = "refunded"
)

// Plan is a storage tier sold against the wallet balance.
type Plan struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	StorageGB   int    `json:"storage_gb"`
	PeriodDays  int    `json:"period_days"`
}

// Purchase records one plan bought with the wallet. TransactionID is the debit entry.
type Purchase struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	PlanCode      string    `db:"plan_code" json:"plan_code"`
	Amount        int64     `db:"amount" json:"amount"`
	Status        Status    `db:"status" json:"status"`
	TransactionID string    `db:"transaction_id" json:"transaction_id"`
	ValidFrom     time.Time `db:"valid_from" json:"valid_from"`
	ValidUntil    time.Time `db:"valid_until" json:"valid_until"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
