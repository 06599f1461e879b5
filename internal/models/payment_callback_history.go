package models

import (
	"encoding/json"
	"time"
)

type PaymentGateway string

const (
	PaymentGatewayMercadoPago PaymentGateway = "mercadopago"
	PaymentGatewayMidtrans    PaymentGateway = "midtrans"
)

// PaymentCallbackHistory is the audit trail of inbound gateway deliveries.
type PaymentCallbackHistory struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	PaymentGateway     PaymentGateway  `gorm:"type:varchar(50);not null" json:"payment_gateway"`
	PaymentReferenceID string          `gorm:"type:varchar(128);index" json:"payment_reference_id"`
	CorrelationID      string          `gorm:"type:varchar(128);index" json:"correlation_id"`
	Outcome            string          `gorm:"type:varchar(50)" json:"outcome"`
	Detail             string          `gorm:"type:text" json:"detail"`
	Metadata           json.RawMessage `gorm:"type:jsonb" json:"metadata"`
	CreatedAt          time.Time       `json:"created_at"`
}
