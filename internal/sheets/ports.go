package sheets

import (
	"context"

	"cognita/internal/core"
)

// Ports for outbound adapters.
type (
	// FinanceExporter appends finance transactions to an external ledger.
	FinanceExporter interface {
		ExportTransaction(ctx context.Context, t core.FinanceTransaction) (rowRef string, err error)
	}
)

// Header is the column layout of exported finance rows.
var Header = []string{"Date", "Type", "Category", "Description", "Amount"}

// Row renders t as the cell values of one exported row. Amounts are
// written with two decimals so the sheet can parse them as numbers.
func Row(t core.FinanceTransaction) []string {
	date := ""
	if !t.TransactionDate.IsZero() {
		date = t.TransactionDate.UTC().Format(core.DateKeyLayout)
	}
	return []string{date, string(t.Type), t.Category, t.Description, t.Amount.StringFixed(2)}
}
