package agent

import (
	"context"
	"fmt"

	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
)

// Source reads raw on-prem records. A customer without a record yields
// (nil, nil), which the agent reports as null data.
type Source interface {
	Lookup(ctx context.Context, customerID string, resource domain.Resource) (any, error)
}

// Invoice is the on-prem invoice record handed back to callers
type Invoice struct {
	InvoiceID   string `json:"invoiceId" db:"invoice_id"`
	Status      string `json:"status" db:"status"`
	AmountCents int64  `json:"amountCents" db:"amount_cents"`
}

// Contract is the on-prem contract record handed back to callers
type Contract struct {
	ContractID  string `json:"contractId" db:"contract_id"`
	Tier        string `json:"tier" db:"tier"`
	RenewalDate string `json:"renewalDate" db:"renewal_date"`
}

// StaticSource serves a fixed in-memory dataset
type StaticSource struct {
	invoices  map[string]Invoice
	contracts map[string]Contract
}

// NewStaticSource returns the built-in demo dataset
func NewStaticSource() *StaticSource {
	return &StaticSource{
		invoices: map[string]Invoice{
			"cust_100": {InvoiceID: "inv_20001", Status: "open", AmountCents: 15400},
			"cust_200": {InvoiceID: "inv_20002", Status: "paid", AmountCents: 28900},
		},
		contracts: map[string]Contract{
			"cust_100": {ContractID: "ct_8001", Tier: "enterprise", RenewalDate: "2026-09-01"},
			"cust_200": {ContractID: "ct_8002", Tier: "business", RenewalDate: "2026-05-15"},
		},
	}
}

// Lookup implements Source
func (s *StaticSource) Lookup(_ context.Context, customerID string, resource domain.Resource) (any, error) {
	switch resource {
	case domain.ResourceInvoice:
		if inv, ok := s.invoices[customerID]; ok {
			return inv, nil
		}
		return nil, nil
	case domain.ResourceContract:
		if ct, ok := s.contracts[customerID]; ok {
			return ct, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported resource %q", resource)
	}
}
