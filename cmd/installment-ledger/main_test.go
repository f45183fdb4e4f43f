package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/iwvelando/installment-ledger/internal/config"
	"github.com/iwvelando/installment-ledger/internal/store"
	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
	"github.com/iwvelando/installment-ledger/pkg/testutil"
)

func TestInitializeLogger(t *testing.T) {
	tests := []struct {
		name     string
		conf     config.LoggingConfig
		override string
		wantErr  bool
	}{
		{"Defaults", config.LoggingConfig{}, "", false},
		{"Console debug", config.LoggingConfig{Level: "debug", Format: "console"}, "", false},
		{"Override wins", config.LoggingConfig{Level: "bogus"}, "warn", false},
		{"Invalid level", config.LoggingConfig{Level: "loud"}, "", true},
		{"Invalid format", config.LoggingConfig{Format: "xml"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := initializeLogger(tt.conf, tt.override)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("initializeLogger() error = %v", err)
			}
			_ = logger.Sync()
		})
	}
}

func TestInitializeLoggerOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ledger.log")
	logger, err := initializeLogger(config.LoggingConfig{OutputFile: path}, "")
	if err != nil {
		t.Fatalf("initializeLogger() error = %v", err)
	}
	logger.Info("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("expected log line in file, got %q", data)
	}
}

type fixture struct {
	app    *app
	out    *bytes.Buffer
	dir    string
	debtor ledger.Debtor
	loan   ledger.Loan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	conf, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	conf.Storage.Path = filepath.Join(dir, "data")

	ctx := context.Background()
	kv, err := store.OpenKV(ctx, conf.Storage, nil)
	if err != nil {
		t.Fatalf("OpenKV() error = %v", err)
	}
	st, err := store.Open(ctx, nil, kv)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	debtor, err := st.AddDebtor(ctx, ledger.DebtorInput{Name: "Ana", Phone: "11 98765-4321"})
	if err != nil {
		t.Fatalf("AddDebtor() error = %v", err)
	}
	loan, err := st.AddLoan(ctx, ledger.LoanInput{
		DebtorID:          debtor.ID,
		Type:              ledger.LoanTypeCash,
		StartDate:         "2024-01-15",
		TotalValue:        300,
		InstallmentsCount: 3,
		Desc:              "Geladeira",
	})
	if err != nil {
		t.Fatalf("AddLoan() error = %v", err)
	}

	out := &bytes.Buffer{}
	return &fixture{
		app: &app{
			conf:         conf,
			logger:       zap.NewNop(),
			store:        st,
			outputFormat: constants.OutputFormatPretty,
			out:          out,
		},
		out:    out,
		dir:    dir,
		debtor: debtor,
		loan:   loan,
	}
}

func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	f.out.Reset()
	return f.app.run(context.Background(), args)
}

func TestListCommand(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "list"); err != nil {
		t.Fatalf("list error = %v", err)
	}
	if strings.Count(f.out.String(), "Geladeira") != 3 {
		t.Fatalf("expected 3 rows, got:\n%s", f.out.String())
	}

	if err := f.run(t, "list", "-start", "2024-03-01"); err != nil {
		t.Fatalf("list error = %v", err)
	}
	if strings.Count(f.out.String(), "Geladeira") != 1 {
		t.Fatalf("expected 1 filtered row, got:\n%s", f.out.String())
	}

	f.app.outputFormat = constants.OutputFormatCSV
	if err := f.run(t, "list"); err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(f.out.String(), constants.TotalRowLabel) {
		t.Fatalf("expected CSV TOTAL row, got:\n%s", f.out.String())
	}

	if err := f.run(t, "list", "-status", "bogus"); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExportCommand(t *testing.T) {
	f := newFixture(t)

	for _, ext := range []string{"csv", "xlsx", "pdf"} {
		path := filepath.Join(f.dir, "Relatorio."+ext)
		if err := f.run(t, "export", path); err != nil {
			t.Fatalf("export %s error = %v", ext, err)
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Fatalf("expected non-empty %s export, err = %v", ext, err)
		}
	}

	if err := f.run(t, "export", filepath.Join(f.dir, "out.txt")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
	if err := f.run(t, "export"); err == nil {
		t.Fatal("expected usage error without a file")
	}
}

func TestReportAndBillingCommands(t *testing.T) {
	f := newFixture(t)

	if err := f.run(t, "report", f.debtor.ID.String()); err != nil {
		t.Fatalf("report error = %v", err)
	}
	if !strings.Contains(f.out.String(), "*COBRANÇA - ") || !strings.Contains(f.out.String(), "https://wa.me/5511987654321?text=") {
		t.Fatalf("unexpected report output:\n%s", f.out.String())
	}

	if err := f.run(t, "report", "999"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := f.run(t, "billing", "-debtor", f.debtor.ID.String()); err != nil {
		t.Fatalf("billing error = %v", err)
	}
	if !strings.Contains(f.out.String(), "TOTAL  R$ 300,00") {
		t.Fatalf("unexpected billing output:\n%s", f.out.String())
	}
}

func TestPayCommand(t *testing.T) {
	f := newFixture(t)
	loanID := f.loan.ID.String()

	if err := f.run(t, "pay", "-amount", "40", loanID, "1"); err != nil {
		t.Fatalf("pay error = %v", err)
	}
	if !strings.Contains(f.out.String(), "R$ 40,00 pago de R$ 100,00 (Parcial)") {
		t.Fatalf("unexpected pay output %q", f.out.String())
	}

	if err := f.run(t, "pay", loanID, "1"); err != nil {
		t.Fatalf("pay error = %v", err)
	}
	if err := f.run(t, "pay", loanID, "1"); !errors.Is(err, ledger.ErrConfirmationRequired) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	if err := f.run(t, "pay", loanID, "1", "-yes"); err != nil {
		t.Fatalf("pay -yes error = %v", err)
	}
	if !strings.Contains(f.out.String(), "(Pendente)") {
		t.Fatalf("expected reversal, got %q", f.out.String())
	}

	if err := f.run(t, "pay", loanID, "x"); err == nil {
		t.Fatal("expected error for invalid installment number")
	}
}

func TestBackupAndRestoreCommands(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "backup.json")

	if err := f.run(t, "backup", path); err != nil {
		t.Fatalf("backup error = %v", err)
	}
	if strings.TrimSpace(f.out.String()) != path {
		t.Fatalf("expected backup path echoed, got %q", f.out.String())
	}

	if err := f.app.store.DeleteLoan(context.Background(), f.loan.ID, true); err != nil {
		t.Fatalf("DeleteLoan() error = %v", err)
	}

	if err := f.run(t, "restore", path); !errors.Is(err, ledger.ErrConfirmationRequired) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	if err := f.run(t, "restore", path, "-yes"); err != nil {
		t.Fatalf("restore error = %v", err)
	}
	restored := testutil.FindLoan(f.app.store.Loans(), f.loan.ID)
	if restored == nil || !testutil.AlmostEqual(restored.Remaining(), 300) {
		t.Fatalf("expected restored loan with 300 remaining, got %+v", restored)
	}

	bad := filepath.Join(f.dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"loans": []}`), 0600); err != nil {
		t.Fatalf("failed to write bad backup: %v", err)
	}
	if err := f.run(t, "restore", "-yes", bad); !errors.Is(err, ledger.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	err := f.run(t, "frobnicate")
	if err == nil || !strings.Contains(err.Error(), fmt.Sprintf("%q", "frobnicate")) {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}
