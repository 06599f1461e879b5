package models

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentIntent is a booking attempt waiting for the gateway to confirm payment.
// It is created before the payer is redirected and removed once the payment is reconciled.
type PaymentIntent struct {
	CorrelationID string          `gorm:"primaryKey;type:varchar(128)" json:"correlationId"`
	BarberID      string          `gorm:"type:varchar(128)" json:"barberId"`
	ServiceName   string          `gorm:"type:varchar(255)" json:"service"`
	ClientName    string          `gorm:"type:varchar(255)" json:"clientName"`
	DateKey       string          `gorm:"type:varchar(32)" json:"dateKey"`
	HourKey       string          `gorm:"type:varchar(32)" json:"hourKey"`
	Amount        decimal.Decimal `gorm:"type:numeric(15,2);not null" json:"amount"`
	CreatedAt     time.Time       `gorm:"index" json:"createdAt"`
}

// Slot identifies the barber/date/hour a booking occupies.
func (i PaymentIntent) Slot() string {
	return i.BarberID + "/" + i.DateKey + "/" + i.HourKey
}

// ToBooking copies the booking attributes of the intent into a booking record.
func (i PaymentIntent) ToBooking() ConfirmedBooking {
	return ConfirmedBooking{
		CorrelationID: i.CorrelationID,
		BarberID:      i.BarberID,
		ServiceName:   i.ServiceName,
		ClientName:    i.ClientName,
		DateKey:       i.DateKey,
		HourKey:       i.HourKey,
		Amount:        i.Amount,
		CreatedAt:     i.CreatedAt,
	}
}

var correlationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidCorrelationID reports whether id can be used as a correlation id. The
// id doubles as a database key, so path separators and the characters the
// Realtime Database forbids in keys are rejected.
func ValidCorrelationID(id string) bool {
	return correlationIDPattern.MatchString(id)
}
