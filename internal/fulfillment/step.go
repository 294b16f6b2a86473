package fulfillment

// Step is the last fulfillment step that completed for a session.
type Step string

const (
	StepEventVerified    Step = "event_verified"
	StepCartLoaded       Step = "cart_loaded"
	StepCustomerResolved Step = "customer_resolved"
	StepOrderCreated     Step = "order_created"
	StepPaymentRecorded  Step = "payment_recorded"
	StepCartCleared      Step = "cart_cleared"
	StepStockAdjusted    Step = "stock_adjusted"
	StepOrderFinalized   Step = "order_finalized"
	StepInvoiceIssued    Step = "invoice_issued"
	StepNotificationSent Step = "notification_sent"
	StepCompleted        Step = "completed"
)

var sequence = []Step{
	StepEventVerified,
	StepCartLoaded,
	StepCustomerResolved,
	StepOrderCreated,
	StepPaymentRecorded,
	StepCartCleared,
	StepStockAdjusted,
	StepOrderFinalized,
	StepInvoiceIssued,
	StepNotificationSent,
	StepCompleted,
}

func (s Step) index() int {
	for i, v := range sequence {
		if v == s {
			return i
		}
	}
	return -1
}

// Reached reports whether s is t or a later step.
func (s Step) Reached(t Step) bool {
	return s.index() >= t.index() && t.index() >= 0
}

func (s Step) Valid() bool { return s.index() >= 0 }
