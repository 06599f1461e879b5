package views

// PaymentResultProps is what the payment landing page shows. State comes
// from the booking record, never from the gateway's redirect query.
type PaymentResultProps struct {
	CorrelationID string
	Found         bool
	Paid          bool
	PaymentStatus string
	Service       string
	DateKey       string
	HourKey       string
}

func (p PaymentResultProps) headline() string {
	switch {
	case p.Paid:
		return "Pago confirmado"
	case !p.Found:
		return "Estamos esperando la confirmación del pago"
	case p.PaymentStatus == "rejected" || p.PaymentStatus == "cancelled":
		return "El pago no se completó"
	}
	return "Pago en proceso"
}

func (p PaymentResultProps) status() string {
	if p.PaymentStatus == "" {
		return "pending"
	}
	return p.PaymentStatus
}
