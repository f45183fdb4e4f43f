package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iwvelando/installment-ledger/internal/server"
	"github.com/iwvelando/installment-ledger/internal/store"
	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/export"
	"github.com/iwvelando/installment-ledger/pkg/format"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
	"github.com/iwvelando/installment-ledger/pkg/output"
	"github.com/iwvelando/installment-ledger/pkg/query"
	"github.com/iwvelando/installment-ledger/pkg/report"
	"github.com/iwvelando/installment-ledger/pkg/validation"
)

// run dispatches one command.
func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return a.list(rest)
	case "export":
		return a.export(rest)
	case "billing":
		return a.billing(rest)
	case "report":
		return a.report(rest)
	case "pay":
		return a.pay(ctx, rest)
	case "backup":
		return a.backup(rest)
	case "restore":
		return a.restore(ctx, rest)
	case "serve":
		return a.serve(ctx, rest)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// filterFlags registers one string flag per query filter parameter.
func filterFlags(fs *flag.FlagSet) map[string]*string {
	names := []struct {
		name  string
		usage string
	}{
		{query.ParamSearch, "free-text search over debtor, description, card and total"},
		{query.ParamDebtor, "debtor ID"},
		{query.ParamType, "loan type: dinheiro, cartao"},
		{query.ParamCardDueDay, "card due day"},
		{query.ParamStatus, "installment status: Pendente, Parcial, Pago"},
		{query.ParamExactDueDate, "exact due date (YYYY-MM-DD)"},
		{query.ParamDueDateStart, "earliest due date (YYYY-MM-DD)"},
		{query.ParamDueDateEnd, "latest due date (YYYY-MM-DD)"},
	}
	values := make(map[string]*string, len(names))
	for _, n := range names {
		values[n.name] = fs.String(n.name, "", n.usage)
	}
	return values
}

func parseFilters(values map[string]*string) (query.Filters, error) {
	params := make(map[string]string, len(values))
	for name, v := range values {
		params[name] = *v
	}
	return query.ParseFilters(params)
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// parseArgs parses flags anywhere on the command line, so that both
// "restore -yes f.json" and "restore f.json -yes" work, and returns the
// positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func (a *app) list(args []string) error {
	fs := newFlagSet("list")
	filters := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := parseFilters(filters)
	if err != nil {
		return err
	}

	result := a.store.Query(f)
	switch a.outputFormat {
	case constants.OutputFormatCSV:
		return output.CsvFormat(a.out, result)
	default:
		output.PrettyFormat(a.out, result)
	}
	return nil
}

func (a *app) export(args []string) error {
	fs := newFlagSet("export")
	filters := filterFlags(fs)
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return errors.New("usage: export [filter flags] <file>")
	}
	path := positional[0]
	exportFormat := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if err := validation.ValidateExportFormat(exportFormat); err != nil {
		return err
	}
	f, err := parseFilters(filters)
	if err != nil {
		return err
	}

	result := a.store.Query(f)
	if err := writeFile(path, func(w io.Writer) error {
		return export.Write(w, exportFormat, result.Rows, time.Now())
	}); err != nil {
		return err
	}
	a.logger.Info("export written",
		zap.String("op", "main.export"),
		zap.String("file", path),
		zap.Int("rows", len(result.Rows)),
	)
	return nil
}

func (a *app) billing(args []string) error {
	fs := newFlagSet("billing")
	filters := filterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	f, err := parseFilters(filters)
	if err != nil {
		return err
	}

	b := report.BillingSummary(a.store.Query(f), a.store.Debtors(), time.Now())
	fmt.Fprintln(a.out, b.GeneratedOn)
	for _, line := range report.BillingLines(b) {
		fmt.Fprintln(a.out, line)
	}
	fmt.Fprintln(a.out, b.ShareLink)
	return nil
}

func (a *app) report(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: report <debtorID>")
	}
	id, err := ledger.ParseID(args[0])
	if err != nil {
		return err
	}
	debtor, err := a.store.Debtor(id)
	if err != nil {
		return err
	}

	msg, pending := report.DebtorMessage(debtor, a.store.Loans(), time.Now())
	if !pending {
		fmt.Fprintf(a.out, "%s não possui parcelas pendentes.\n", debtor.Name)
		return nil
	}
	fmt.Fprintln(a.out, msg.Text)
	link, err := report.WhatsAppLink(debtor.Phone, msg.Text, a.conf.Messaging.CountryCode)
	if err != nil {
		a.logger.Warn("no share link for debtor",
			zap.String("op", "main.report"),
			zap.Int64("debtor", int64(debtor.ID)),
			zap.Error(err),
		)
		return nil
	}
	fmt.Fprintf(a.out, "\n%s\n", link)
	return nil
}

func (a *app) pay(ctx context.Context, args []string) error {
	fs := newFlagSet("pay")
	amount := fs.String("amount", "", "amount to pay; blank pays the remaining balance")
	yes := fs.Bool("yes", false, "confirm reversing a paid installment")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 2 {
		return errors.New("usage: pay [-amount X] [-yes] <loanID> <n>")
	}
	loanID, err := ledger.ParseID(positional[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(positional[1])
	if err != nil {
		return fmt.Errorf("invalid installment number %q", positional[1])
	}

	inst, decision, err := a.store.Toggle(ctx, loanID, n, *amount, *yes)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s: %s pago de %s (%s)\n", decision.Action,
		format.Currency(inst.PaidValue), format.Currency(inst.Value), inst.Status())
	return nil
}

func (a *app) backup(args []string) error {
	if len(args) > 1 {
		return errors.New("usage: backup [file]")
	}
	snapshot := a.store.Snapshot()
	path := store.BackupFileName(time.Now())
	if len(args) == 1 {
		path = args[0]
	}
	if err := writeFile(path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(snapshot)
	}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, path)
	return nil
}

func (a *app) restore(ctx context.Context, args []string) error {
	fs := newFlagSet("restore")
	yes := fs.Bool("yes", false, "confirm replacing all current data")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return errors.New("usage: restore <file> -yes")
	}
	if !*yes {
		return fmt.Errorf("%w: %s (pass -yes)", ledger.ErrConfirmationRequired, ledger.ConfirmationPrompt(ledger.OpRestore))
	}

	file, err := os.Open(positional[0])
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()

	backup, err := store.DecodeBackup(file)
	if err != nil {
		return err
	}
	return a.store.Restore(ctx, *backup, true)
}

func (a *app) serve(ctx context.Context, args []string) error {
	fs := newFlagSet("serve")
	serverConfig := fs.String("server-config", constants.DefaultServerConfigFile, "path to server configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := server.LoadConfig(*serverConfig)
	if err != nil {
		return err
	}

	logger := a.logger
	// The server config may carry its own logging section.
	if cfg.Logging.Level != "" || cfg.Logging.Format != "" || cfg.Logging.OutputFile != "" {
		logger, err = initializeLogger(cfg.Logging, a.logLevel)
		if err != nil {
			return err
		}
		defer func() {
			_ = logger.Sync()
		}()
	}

	srv := &http.Server{
		Addr: cfg.Address,
		Handler: server.NewHandler(logger, a.store, server.Options{
			MaxUploadSize: cfg.UploadSizeBytes(),
			Version:       version,
			CountryCode:   a.conf.Messaging.CountryCode,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("op", "main.serve"),
			zap.String("address", cfg.Address),
			zap.String("version", version),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()
	logger.Info("shutting down", zap.String("op", "main.serve"))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// writeFile writes through a temporary file so that a failed export never
// leaves a truncated file behind.
func writeFile(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
