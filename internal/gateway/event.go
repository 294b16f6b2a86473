package gateway

import (
	"encoding/json"
	"fmt"
)

// wire shape of a checkout session object inside event.data.object
type sessionObject struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	PaymentIntent      string            `json:"payment_intent"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	AmountTotal        int64             `json:"amount_total"`
	Currency           string            `json:"currency"`
	Metadata           map[string]string `json:"metadata"`
	CustomerDetails    *CustomerDetails  `json:"customer_details"`
	ShippingDetails    *struct {
		Address *Address `json:"address"`
	} `json:"shipping_details"`
	CollectedInformation *struct {
		ShippingDetails *struct {
			Address *Address `json:"address"`
		} `json:"shipping_details"`
	} `json:"collected_information"`
}

// decodeSession reads the session object. Newer API versions move the
// shipping details under collected_information; the address sent with the
// checkout request is the last fallback.
func decodeSession(raw json.RawMessage) (*CompletedSession, error) {
	var o sessionObject
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	s := &CompletedSession{
		ID:                 o.ID,
		CustomerID:         o.Customer,
		PaymentIntentID:    o.PaymentIntent,
		PaymentMethodTypes: o.PaymentMethodTypes,
		AmountTotal:        o.AmountTotal,
		Currency:           o.Currency,
		Metadata:           o.Metadata,
	}
	if s.Metadata == nil {
		s.Metadata = map[string]string{}
	}
	if o.CustomerDetails != nil {
		s.Customer = *o.CustomerDetails
	}
	switch {
	case o.ShippingDetails != nil && o.ShippingDetails.Address != nil:
		s.Shipping = *o.ShippingDetails.Address
	case o.CollectedInformation != nil && o.CollectedInformation.ShippingDetails != nil &&
		o.CollectedInformation.ShippingDetails.Address != nil:
		s.Shipping = *o.CollectedInformation.ShippingDetails.Address
	default:
		if v := s.Metadata[MetadataShippingAddress]; v != "" {
			var a Address
			if err := json.Unmarshal([]byte(v), &a); err == nil {
				s.Shipping = a
			}
		}
	}
	return s, nil
}
