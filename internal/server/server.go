package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iwvelando/installment-ledger/internal/store"
	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
	"github.com/iwvelando/installment-ledger/pkg/query"
	"github.com/iwvelando/installment-ledger/pkg/report"
)

// Options tunes the HTTP handler.
type Options struct {
	MaxUploadSize int64
	Version       string
	CountryCode   string
	// Now replaces the clock used for report and export stamps.
	Now func() time.Time
}

type handler struct {
	logger        *zap.Logger
	store         *store.Store
	maxUploadSize int64
	version       string
	countryCode   string
	now           func() time.Time
	metrics       *metrics
}

// NewHandler constructs the HTTP handler that serves the ledger API.
func NewHandler(logger *zap.Logger, st *store.Store, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	h := &handler{
		logger:        logger,
		store:         st,
		maxUploadSize: opts.MaxUploadSize,
		version:       trimmedVersion,
		countryCode:   opts.CountryCode,
		now:           opts.Now,
		metrics:       newMetrics(),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/installments", h.handleInstallments)
	mux.HandleFunc("POST /api/installments/pay", h.handleMarkPaid)
	mux.HandleFunc("GET /api/filters", h.handleFilters)

	mux.HandleFunc("GET /api/debtors", h.handleListDebtors)
	mux.HandleFunc("POST /api/debtors", h.handleAddDebtor)
	mux.HandleFunc("DELETE /api/debtors/{id}", h.handleDeleteDebtor)

	mux.HandleFunc("GET /api/cards", h.handleListCards)
	mux.HandleFunc("POST /api/cards", h.handleAddCard)
	mux.HandleFunc("DELETE /api/cards/{id}", h.handleDeleteCard)

	mux.HandleFunc("GET /api/loans", h.handleListLoans)
	mux.HandleFunc("POST /api/loans", h.handleAddLoan)
	mux.HandleFunc("GET /api/loans/{id}", h.handleLoanDetails)
	mux.HandleFunc("DELETE /api/loans/{id}", h.handleDeleteLoan)
	mux.HandleFunc("GET /api/loans/{id}/installments/{n}/toggle", h.handleDecideToggle)
	mux.HandleFunc("POST /api/loans/{id}/installments/{n}/toggle", h.handleToggle)

	mux.HandleFunc("GET /api/billing-date", h.handleBillingDate)
	mux.HandleFunc("GET /api/export", h.handleExport)
	mux.HandleFunc("GET /api/report/{debtorID}", h.handleReport)
	mux.HandleFunc("GET /api/billing", h.handleBilling)

	mux.HandleFunc("GET /api/backup", h.handleBackup)
	mux.HandleFunc("POST /api/restore", h.handleRestore)

	mux.HandleFunc("GET /api/version", h.handleVersion)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.metrics.registry, promhttp.HandlerOpts{}))

	return h.withRequestID(h.withLogging(mux))
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// statusFor maps the ledger error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrDataShape):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrConfirmationRequired):
		return http.StatusConflict
	case errors.Is(err, report.ErrNoPhone):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *handler) respondStoreError(w http.ResponseWriter, err error, op string) {
	h.respondErrorWithOp(w, statusFor(err), err.Error(), op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	log := h.logger.Warn
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log("ledger request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUploadSize))
	if err := decoder.Decode(target); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return fmt.Errorf("%w: failed to decode request body: %w", ledger.ErrValidation, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (ledger.ID, error) {
	raw := r.PathValue(name)
	id, err := ledger.ParseID(raw)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", ledger.ErrValidation, name, raw)
	}
	return id, nil
}

// confirmed reads the confirm query parameter; anything unparsable counts
// as not confirmed.
func confirmed(r *http.Request) bool {
	ok, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("confirm")))
	return err == nil && ok
}

func filtersFromRequest(r *http.Request) (query.Filters, error) {
	values := r.URL.Query()
	params := make(map[string]string, len(values))
	for key := range values {
		params[key] = values.Get(key)
	}
	return query.ParseFilters(params)
}
