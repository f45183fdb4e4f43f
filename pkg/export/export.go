// Package export writes filtered installment rows as CSV, XLSX or PDF
// reports, each closed by a TOTAL row.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"

	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/datetime"
	"github.com/iwvelando/installment-ledger/pkg/format"
	"github.com/iwvelando/installment-ledger/pkg/mathutil"
	"github.com/iwvelando/installment-ledger/pkg/query"
)

const (
	// SheetName is the worksheet holding the rows in XLSX exports.
	SheetName = "Parcelas_Filtradas"

	// ReportTitle heads PDF exports.
	ReportTitle = "Relatório de Parcelas"

	baseFileName = "Relatorio_Parcelas"
)

// Header is the column layout shared by every format.
var Header = []string{
	"Devedor",
	"Descrição",
	"Tipo",
	"Valor Parcela",
	"Cartão",
	"Data da Compra",
	"Parcela",
	"Vencimento",
	"Status",
}

// pdfHeader abbreviates the wider columns to fit a landscape page.
var pdfHeader = []string{"Devedor", "Descrição", "Tipo", "Valor Parc.", "Cartão", "Compra", "Parc.", "Vencimento", "Status"}

var pdfWidths = []float64{45, 60, 22, 28, 30, 24, 16, 26, 22}

const valueColumn = 3

// Total sums the installment values of rows.
func Total(rows []query.Row) float64 {
	var total mathutil.Accumulator
	for _, row := range rows {
		total.Add(row.Value)
	}
	return total.Value()
}

func purchaseDate(row query.Row) string {
	if row.PurchaseDate.IsZero() {
		return ""
	}
	return datetime.FormatDisplay(row.PurchaseDate)
}

func cells(row query.Row, value string) []string {
	return []string{
		row.DebtorName,
		row.Desc,
		string(row.Type),
		value,
		row.CardName,
		purchaseDate(row),
		format.InstallmentLabel(row.Number, row.TotalCount),
		datetime.FormatDisplay(row.DueDate),
		string(row.Status),
	}
}

func totalCells(value string) []string {
	out := make([]string, len(Header))
	out[0] = constants.TotalRowLabel
	out[valueColumn] = value
	return out
}

func plainAmount(v float64) string {
	return strconv.FormatFloat(mathutil.Round(v), 'f', 2, 64)
}

// WriteCSV writes the rows with a header line and a TOTAL line. Values use a
// dot decimal separator.
func WriteCSV(w io.Writer, rows []query.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(cells(row, plainAmount(row.Value))); err != nil {
			return err
		}
	}
	if err := cw.Write(totalCells(plainAmount(Total(rows)))); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a workbook with a single sheet named SheetName. The value
// column holds numbers so that the spreadsheet can sum it.
func WriteXLSX(w io.Writer, rows []query.Row) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	for i, row := range rows {
		values := toInterfaces(cells(row, ""))
		values[valueColumn] = mathutil.Round(row.Value)
		if err := setRow(f, i+2, values); err != nil {
			return err
		}
	}

	total := toInterfaces(totalCells(""))
	total[valueColumn] = mathutil.Round(Total(rows))
	totalRow := len(rows) + 2
	if err := setRow(f, totalRow, total); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetName, totalRow, totalRow, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", "I", 18); err != nil {
		return err
	}

	return f.Write(w)
}

func setRow(f *excelize.File, n int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	return f.SetSheetRow(SheetName, cell, &values)
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// WritePDF writes a landscape A4 report with a title, the generation date,
// a header row, the body and a TOTAL footer.
func WritePDF(w io.Writer, rows []query.Row, now time.Time) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(ReportTitle, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Text(14, 22, tr(ReportTitle))
	pdf.SetFont("Helvetica", "", 10)
	pdf.Text(14, 30, tr("Gerado em: "+datetime.FormatDisplay(datetime.Day(now))))
	pdf.SetY(36)

	line := func(values []string, style string, fill bool) {
		pdf.SetFont("Helvetica", style, 9)
		for i, v := range values {
			align := "L"
			if i == valueColumn {
				align = "R"
			}
			pdf.CellFormat(pdfWidths[i], 7, tr(truncate(v, pdfWidths[i])), "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFillColor(41, 128, 185)
	pdf.SetTextColor(255, 255, 255)
	line(pdfHeader, "B", true)

	pdf.SetTextColor(0, 0, 0)
	for _, row := range rows {
		line(cells(row, format.Currency(row.Value)), "", false)
	}

	pdf.SetFillColor(230, 230, 230)
	line(totalCells(format.Currency(Total(rows))), "B", true)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf.Output(w)
}

// truncate shortens text that would overflow a column of width mm at 9pt.
func truncate(text string, width float64) string {
	limit := int(width / 1.9)
	runes := []rune(text)
	if len(runes) <= limit || limit < 4 {
		return text
	}
	return strings.TrimSpace(string(runes[:limit-3])) + "..."
}

// Write dispatches on the export format name.
func Write(w io.Writer, exportFormat string, rows []query.Row, now time.Time) error {
	switch strings.ToLower(exportFormat) {
	case constants.ExportFormatCSV:
		return WriteCSV(w, rows)
	case constants.ExportFormatXLSX:
		return WriteXLSX(w, rows)
	case constants.ExportFormatPDF:
		return WritePDF(w, rows, now)
	}
	return fmt.Errorf("unsupported export format %q", exportFormat)
}

// ContentType returns the MIME type of an export format.
func ContentType(exportFormat string) string {
	switch strings.ToLower(exportFormat) {
	case constants.ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case constants.ExportFormatPDF:
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// FileName returns the download name of an export.
func FileName(exportFormat string) string {
	return baseFileName + "." + strings.ToLower(exportFormat)
}
