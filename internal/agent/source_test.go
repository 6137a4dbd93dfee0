package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSource(t *testing.T) {
	src := NewStaticSource()

	tests := []struct {
		name       string
		customerID string
		resource   domain.Resource
		want       any
		wantErr    bool
	}{
		{"invoice cust_100", "cust_100", domain.ResourceInvoice, Invoice{InvoiceID: "inv_20001", Status: "open", AmountCents: 15400}, false},
		{"invoice cust_200", "cust_200", domain.ResourceInvoice, Invoice{InvoiceID: "inv_20002", Status: "paid", AmountCents: 28900}, false},
		{"contract cust_100", "cust_100", domain.ResourceContract, Contract{ContractID: "ct_8001", Tier: "enterprise", RenewalDate: "2026-09-01"}, false},
		{"unknown customer", "cust_300", domain.ResourceContract, nil, false},
		{"unknown resource", "cust_100", domain.Resource("payroll"), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := src.Lookup(context.Background(), tt.customerID, tt.resource)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeQuerier struct {
	query    string
	args     []interface{}
	invoices []Invoice
	contract []Contract
	err      error
}

func (q *fakeQuerier) SelectContext(_ context.Context, dest interface{}, query string, args ...interface{}) error {
	q.query = query
	q.args = args
	if q.err != nil {
		return q.err
	}

	switch d := dest.(type) {
	case *[]Invoice:
		*d = append(*d, q.invoices...)
	case *[]Contract:
		*d = append(*d, q.contract...)
	}
	return nil
}

func TestPostgresSource_Lookup(t *testing.T) {
	t.Run("invoice row", func(t *testing.T) {
		q := &fakeQuerier{invoices: []Invoice{{InvoiceID: "inv_1", Status: "open", AmountCents: 10}}}

		got, err := NewPostgresSource(q).Lookup(context.Background(), "cust_1", domain.ResourceInvoice)
		require.NoError(t, err)
		assert.Equal(t, Invoice{InvoiceID: "inv_1", Status: "open", AmountCents: 10}, got)
		assert.Contains(t, q.query, "FROM onprem_invoices")
		assert.Equal(t, []interface{}{"cust_1"}, q.args)
	})

	t.Run("contract row", func(t *testing.T) {
		q := &fakeQuerier{contract: []Contract{{ContractID: "ct_1", Tier: "team", RenewalDate: "2027-01-01"}}}

		got, err := NewPostgresSource(q).Lookup(context.Background(), "cust_1", domain.ResourceContract)
		require.NoError(t, err)
		assert.Equal(t, Contract{ContractID: "ct_1", Tier: "team", RenewalDate: "2027-01-01"}, got)
		assert.Contains(t, q.query, "FROM onprem_contracts")
	})

	t.Run("no rows yields null data", func(t *testing.T) {
		got, err := NewPostgresSource(&fakeQuerier{}).Lookup(context.Background(), "cust_2", domain.ResourceInvoice)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("query error", func(t *testing.T) {
		q := &fakeQuerier{err: errors.New("connection refused")}

		_, err := NewPostgresSource(q).Lookup(context.Background(), "cust_2", domain.ResourceContract)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read contract for cust_2")
	})
}
