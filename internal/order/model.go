package order

import (
	"time"
)

type Status string

const (
	StatusPendingPayment   Status = "pending_payment"
	StatusPaymentConfirmed Status = "payment_confirmed"
	StatusGeneratingImage  Status = "generating_image"
	StatusCompleted        Status = "completed"
	StatusExpired          Status = "expired"
	StatusFailed           Status = "failed"
)

// Terminal reports whether no further transition is defined from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired || s == StatusFailed
}

type Order struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	Prompt     string    `json:"prompt"`
	PaymentID  string    `json:"payment_id"`
	Status     Status    `json:"status"`
	CVU        string    `json:"cvu"`
	Alias      string    `json:"alias"`
	PaymentURL string    `json:"payment_url"`
	ImageURL   *string   `json:"image_url"`
	ExpiresAt  string    `json:"expires_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// StatusView is the shape pushed to stream listeners and returned by verify:
// the only two fields a client needs to render order progress.
type StatusView struct {
	Status   Status  `json:"status"`
	ImageURL *string `json:"imageUrl"`
}

func (o *Order) View() StatusView {
	return StatusView{Status: o.Status, ImageURL: o.ImageURL}
}
