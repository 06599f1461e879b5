package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConfirmedBooking is the durable outcome of reconciling a gateway payment.
// A record with Paid=false tracks a non-approved status reported by the gateway.
type ConfirmedBooking struct {
	CorrelationID string          `gorm:"primaryKey;type:varchar(128)" json:"correlationId"`
	BarberID      string          `gorm:"type:varchar(128);index:idx_confirmed_bookings_slot,priority:1" json:"barberId"`
	ServiceName   string          `gorm:"type:varchar(255)" json:"service"`
	ClientName    string          `gorm:"type:varchar(255)" json:"clientName"`
	DateKey       string          `gorm:"type:varchar(32);index:idx_confirmed_bookings_slot,priority:2" json:"dateKey"`
	HourKey       string          `gorm:"type:varchar(32);index:idx_confirmed_bookings_slot,priority:3" json:"hourKey"`
	Amount        decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`

	Paid               bool          `gorm:"not null" json:"paid"`
	PaymentStatus      PaymentStatus `gorm:"type:varchar(50)" json:"paymentStatus"`
	PaymentReferenceID string        `gorm:"type:varchar(128)" json:"paymentReferenceId,omitempty"`
	PaidAt             *time.Time    `json:"paidAt,omitempty"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Slot identifies the barber/date/hour the booking occupies.
func (b ConfirmedBooking) Slot() string {
	return b.BarberID + "/" + b.DateKey + "/" + b.HourKey
}
