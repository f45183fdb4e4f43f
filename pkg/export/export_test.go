package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/iwvelando/installment-ledger/pkg/datetime"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
	"github.com/iwvelando/installment-ledger/pkg/query"
)

var now = time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)

func sampleRows() []query.Row {
	return []query.Row{
		{
			LoanID: 1, DebtorName: "Ana", Desc: "Geladeira", Type: ledger.LoanTypeCash, CardName: "-",
			Number: 1, TotalCount: 3, Value: 100.0 / 3, Status: ledger.StatusPending,
			DueDate: datetime.MustDate("2024-01-15"),
		},
		{
			LoanID: 2, DebtorName: "João", Type: ledger.LoanTypeCard, CardName: "Nubank",
			PurchaseDate: datetime.MustDate("2024-01-25"),
			Number:       2, TotalCount: 2, Value: 1250.5, PaidValue: 1250.5, Status: ledger.StatusPaid,
			DueDate: datetime.MustDate("2024-03-10"),
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, expected 4", len(records))
	}
	if strings.Join(records[0], "|") != strings.Join(Header, "|") {
		t.Errorf("header = %v", records[0])
	}

	expected := [][]string{
		{"Ana", "Geladeira", "dinheiro", "33.33", "-", "", "1/3", "15/01/2024", "Pendente"},
		{"João", "", "cartao", "1250.50", "Nubank", "25/01/2024", "2/2", "10/03/2024", "Pago"},
		{"TOTAL", "", "", "1283.83", "", "", "", "", ""},
	}
	for i, want := range expected {
		if got := strings.Join(records[i+1], "|"); got != strings.Join(want, "|") {
			t.Errorf("record %d = %s, expected %s", i+1, got, strings.Join(want, "|"))
		}
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "TOTAL,") {
		t.Errorf("WriteCSV(empty) = %q", buf.String())
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer func() { _ = f.Close() }()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != SheetName {
		t.Errorf("sheets = %v, expected [%s]", sheets, SheetName)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, expected 4", len(rows))
	}
	if rows[0][0] != "Devedor" || rows[3][0] != "TOTAL" {
		t.Errorf("first column = %q ... %q", rows[0][0], rows[3][0])
	}

	total, err := f.GetCellValue(SheetName, "D4")
	if err != nil {
		t.Fatalf("GetCellValue() error = %v", err)
	}
	if total != "1283.83" {
		t.Errorf("total cell = %q, expected 1283.83", total)
	}
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, sampleRows(), now); err != nil {
		t.Fatalf("WritePDF() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF header")
	}
}

func TestWriteDispatch(t *testing.T) {
	for _, exportFormat := range []string{"csv", "XLSX", "pdf"} {
		var buf bytes.Buffer
		if err := Write(&buf, exportFormat, sampleRows(), now); err != nil {
			t.Errorf("Write(%s) error = %v", exportFormat, err)
		}
		if buf.Len() == 0 {
			t.Errorf("Write(%s) wrote nothing", exportFormat)
		}
	}
	if err := Write(&bytes.Buffer{}, "docx", nil, now); err == nil {
		t.Error("Write(docx) expected error")
	}
}

func TestContentTypeAndFileName(t *testing.T) {
	if got := ContentType("pdf"); got != "application/pdf" {
		t.Errorf("ContentType(pdf) = %s", got)
	}
	if got := ContentType("csv"); !strings.HasPrefix(got, "text/csv") {
		t.Errorf("ContentType(csv) = %s", got)
	}
	if got := FileName("XLSX"); got != "Relatorio_Parcelas.xlsx" {
		t.Errorf("FileName(XLSX) = %s", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("curto", 45); got != "curto" {
		t.Errorf("truncate() = %q", got)
	}
	long := strings.Repeat("a", 60)
	if got := truncate(long, 45); len([]rune(got)) > 23 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate() = %q", got)
	}
}
