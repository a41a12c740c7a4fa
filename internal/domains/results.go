package domains

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Payment providers a routing tree may select.
const (
	ProviderIyzico         = "IYZICO"
	ProviderPaytr          = "PAYTR"
	ProviderStripe         = "STRIPE"
	ProviderBankTransfer   = "BANK_TRANSFER"
	ProviderCashOnDelivery = "CASH_ON_DELIVERY"
)

var knownProviders = map[string]bool{
	ProviderIyzico:         true,
	ProviderPaytr:          true,
	ProviderStripe:         true,
	ProviderBankTransfer:   true,
	ProviderCashOnDelivery: true,
}

// PaymentResult is the payload of a payment routing result node. Providers
// are offered to the customer in order.
type PaymentResult struct {
	Providers []string `json:"providers"`
}

// PaymentResultSchema validates PaymentResult payloads.
type PaymentResultSchema struct{}

// CheckResult implements rules.ResultSchema.
func (PaymentResultSchema) CheckResult(payload json.RawMessage) error {
	var result PaymentResult
	if err := decodeStrict(payload, &result); err != nil {
		return err
	}
	if len(result.Providers) == 0 {
		return errors.New("providers must list at least one provider")
	}
	seen := make(map[string]bool, len(result.Providers))
	for _, p := range result.Providers {
		if !knownProviders[p] {
			return fmt.Errorf("unknown provider %q", p)
		}
		if seen[p] {
			return fmt.Errorf("provider %q listed twice", p)
		}
		seen[p] = true
	}
	return nil
}

// SegmentResult is the payload of a customer segmentation result node.
type SegmentResult struct {
	IsMember *bool `json:"isMember"`
}

// SegmentResultSchema validates SegmentResult payloads.
type SegmentResultSchema struct{}

// CheckResult implements rules.ResultSchema.
func (SegmentResultSchema) CheckResult(payload json.RawMessage) error {
	var result SegmentResult
	if err := decodeStrict(payload, &result); err != nil {
		return err
	}
	if result.IsMember == nil {
		return errors.New("isMember is required")
	}
	return nil
}

func decodeStrict(payload json.RawMessage, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return errors.New("result payload is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed result payload: %w", err)
	}
	return nil
}
