// Package output provides utilities for displaying query results on a
// terminal.
package output

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/iwvelando/installment-ledger/pkg/datetime"
	"github.com/iwvelando/installment-ledger/pkg/export"
	"github.com/iwvelando/installment-ledger/pkg/format"
	"github.com/iwvelando/installment-ledger/pkg/query"
)

// PrettyFormat writes a human-readable rather than machine-readable table
// followed by the KPI totals.
func PrettyFormat(w io.Writer, result query.Result) {
	p := message.NewPrinter(language.BrazilianPortuguese)
	fmt.Fprintf(w, "Vencimento | Parcela | Devedor | Descrição | Cartão | Valor | Pago | Status\n")
	fmt.Fprintf(w, "__________ | _______ | _______ | _________ | ______ | _____ | ____ | ______\n")
	for _, row := range result.Rows {
		_, _ = p.Fprintf(w, "%s | %s | %s | %s | %s | R$ %.2f | R$ %.2f | %s\n",
			datetime.FormatDisplay(row.DueDate),
			format.InstallmentLabel(row.Number, row.TotalCount),
			row.DebtorName,
			dash(row.Desc),
			row.CardName,
			row.Value,
			row.PaidValue,
			row.Status)
	}
	fmt.Fprintf(w, "\n")
	_, _ = p.Fprintf(w, "Parcelas: %d\n", result.Totals.Count)
	_, _ = p.Fprintf(w, "Total previsto: R$ %.2f\n", result.Totals.Expected)
	_, _ = p.Fprintf(w, "Total recebido: R$ %.2f\n", result.Totals.Received)
	_, _ = p.Fprintf(w, "Total pendente: R$ %.2f\n", result.Totals.Pending)
}

// CsvFormat writes the rows in comma-separated value format with the same
// columns and TOTAL line as the CSV export.
func CsvFormat(w io.Writer, result query.Result) error {
	return export.WriteCSV(w, result.Rows)
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
