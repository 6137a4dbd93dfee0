package agent

import (
	"context"
	"fmt"

	"github.com/cuongbtq/onprem-bridge/internal/bridge/domain"
)

const (
	selectInvoiceQuery = `SELECT invoice_id, status, amount_cents
FROM onprem_invoices
WHERE customer_id = $1
ORDER BY issued_at DESC, invoice_id
LIMIT 1`

	selectContractQuery = `SELECT contract_id, tier, to_char(renewal_date, 'YYYY-MM-DD') AS renewal_date
FROM onprem_contracts
WHERE customer_id = $1
ORDER BY renewal_date DESC, contract_id
LIMIT 1`
)

// Querier is the read path of shared/postgresql.Client
type Querier interface {
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// PostgresSource reads the latest invoice or contract of a customer from the
// on-prem PostgreSQL database.
type PostgresSource struct {
	db Querier
}

// NewPostgresSource creates a PostgresSource
func NewPostgresSource(db Querier) *PostgresSource {
	return &PostgresSource{db: db}
}

// Lookup implements Source
func (s *PostgresSource) Lookup(ctx context.Context, customerID string, resource domain.Resource) (any, error) {
	switch resource {
	case domain.ResourceInvoice:
		var rows []Invoice
		if err := s.db.SelectContext(ctx, &rows, selectInvoiceQuery, customerID); err != nil {
			return nil, fmt.Errorf("failed to read invoice for %s: %w", customerID, err)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	case domain.ResourceContract:
		var rows []Contract
		if err := s.db.SelectContext(ctx, &rows, selectContractQuery, customerID); err != nil {
			return nil, fmt.Errorf("failed to read contract for %s: %w", customerID, err)
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	default:
		return nil, fmt.Errorf("unsupported resource %q", resource)
	}
}
