package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/iwvelando/installment-ledger/internal/store"
	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/datetime"
	"github.com/iwvelando/installment-ledger/pkg/export"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
	"github.com/iwvelando/installment-ledger/pkg/query"
	"github.com/iwvelando/installment-ledger/pkg/report"
	"github.com/iwvelando/installment-ledger/pkg/validation"
)

type installmentsResponse struct {
	Rows   []query.Row  `json:"rows"`
	Totals query.Totals `json:"totals"`
}

type installmentView struct {
	Number    int           `json:"number"`
	Value     float64       `json:"value"`
	PaidValue float64       `json:"paidValue"`
	Remaining float64       `json:"remaining"`
	Status    ledger.Status `json:"status"`
	DueDate   string        `json:"dueDate"`
}

type loanDetails struct {
	Loan         ledger.Loan       `json:"loan"`
	DebtorName   string            `json:"debtorName"`
	CardName     string            `json:"cardName"`
	Remaining    float64           `json:"remaining"`
	Installments []installmentView `json:"installments"`
}

type toggleRequest struct {
	Amount  string `json:"amount"`
	Confirm bool   `json:"confirm"`
}

type toggleResponse struct {
	Installment installmentView       `json:"installment"`
	Decision    ledger.ToggleDecision `json:"decision"`
}

type markPaidRequest struct {
	Items   []store.InstallmentRef `json:"items"`
	Refs    []string               `json:"refs"`
	Confirm bool                   `json:"confirm"`
}

type filtersResponse struct {
	DueDays  []int    `json:"dueDays"`
	DueDates []string `json:"dueDates"`
}

type reportResponse struct {
	Pending bool           `json:"pending"`
	Message report.Message `json:"message"`
	Warning string         `json:"warning,omitempty"`
}

func viewOf(loan ledger.Loan, inst ledger.Installment) installmentView {
	return installmentView{
		Number:    inst.Number,
		Value:     inst.Value,
		PaidValue: inst.PaidValue,
		Remaining: inst.Remaining(),
		Status:    inst.Status(),
		DueDate:   datetime.FormatDate(loan.DueDate(inst.Number)),
	}
}

func (h *handler) handleInstallments(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromRequest(r)
	if err != nil {
		h.respondStoreError(w, err, "server.handleInstallments")
		return
	}
	result := h.store.Query(filters)
	rows := result.Rows
	if rows == nil {
		rows = []query.Row{}
	}
	h.writeJSON(w, http.StatusOK, installmentsResponse{Rows: rows, Totals: result.Totals})
}

func (h *handler) handleFilters(w http.ResponseWriter, r *http.Request) {
	dates := query.DueDates(h.store.Loans())
	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, datetime.FormatDate(d))
	}
	h.writeJSON(w, http.StatusOK, filtersResponse{
		DueDays:  query.DueDays(h.store.Cards()),
		DueDates: formatted,
	})
}

func (h *handler) handleListDebtors(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Debtors())
}

func (h *handler) handleAddDebtor(w http.ResponseWriter, r *http.Request) {
	var in ledger.DebtorInput
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.respondStoreError(w, err, "server.handleAddDebtor")
		return
	}
	debtor, err := h.store.AddDebtor(r.Context(), in)
	if err != nil {
		h.respondStoreError(w, err, "server.handleAddDebtor")
		return
	}
	h.writeJSON(w, http.StatusCreated, debtor)
}

func (h *handler) handleDeleteDebtor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondStoreError(w, err, "server.handleDeleteDebtor")
		return
	}
	removed, err := h.store.DeleteDebtor(r.Context(), id, confirmed(r))
	if err != nil {
		h.respondStoreError(w, err, "server.handleDeleteDebtor")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"removedLoans": removed})
}

func (h *handler) handleListCards(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Cards())
}

func (h *handler) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var in ledger.CardInput
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.respondStoreError(w, err, "server.handleAddCard")
		return
	}
	card, err := h.store.AddCard(r.Context(), in)
	if err != nil {
		h.respondStoreError(w, err, "server.handleAddCard")
		return
	}
	h.writeJSON(w, http.StatusCreated, card)
}

func (h *handler) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondStoreError(w, err, "server.handleDeleteCard")
		return
	}
	if err := h.store.DeleteCard(r.Context(), id, confirmed(r)); err != nil {
		h.respondStoreError(w, err, "server.handleDeleteCard")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Loans())
}

func (h *handler) handleAddLoan(w http.ResponseWriter, r *http.Request) {
	var in ledger.LoanInput
	if err := h.decodeJSON(w, r, &in); err != nil {
		h.respondStoreError(w, err, "server.handleAddLoan")
		return
	}
	loan, err := h.store.AddLoan(r.Context(), in)
	if err != nil {
		h.respondStoreError(w, err, "server.handleAddLoan")
		return
	}
	h.logger.Info("loan created",
		zap.String("op", "server.handleAddLoan"),
		zap.Int64("loan", int64(loan.ID)),
		zap.Int("installments", len(loan.Installments)),
	)
	h.writeJSON(w, http.StatusCreated, loan)
}

func (h *handler) handleLoanDetails(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondStoreError(w, err, "server.handleLoanDetails")
		return
	}
	loan, err := h.store.Loan(id)
	if err != nil {
		h.respondStoreError(w, err, "server.handleLoanDetails")
		return
	}

	details := loanDetails{
		Loan:         loan,
		DebtorName:   constants.RemovedDebtorName,
		CardName:     constants.NoCardName,
		Remaining:    loan.Remaining(),
		Installments: make([]installmentView, 0, len(loan.Installments)),
	}
	if debtor, err := h.store.Debtor(loan.DebtorID); err == nil {
		details.DebtorName = debtor.Name
	}
	if loan.IsCard() {
		for _, card := range h.store.Cards() {
			if card.ID == loan.CardID {
				details.CardName = card.Name
				break
			}
		}
	}
	for _, inst := range loan.Installments {
		details.Installments = append(details.Installments, viewOf(loan, inst))
	}
	h.writeJSON(w, http.StatusOK, details)
}

func (h *handler) handleDeleteLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.respondStoreError(w, err, "server.handleDeleteLoan")
		return
	}
	if err := h.store.DeleteLoan(r.Context(), id, confirmed(r)); err != nil {
		h.respondStoreError(w, err, "server.handleDeleteLoan")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func installmentPath(r *http.Request) (ledger.ID, int, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil || n < 1 {
		return 0, 0, fmt.Errorf("%w: invalid installment number %q", ledger.ErrValidation, r.PathValue("n"))
	}
	return id, n, nil
}

func (h *handler) handleDecideToggle(w http.ResponseWriter, r *http.Request) {
	id, n, err := installmentPath(r)
	if err != nil {
		h.respondStoreError(w, err, "server.handleDecideToggle")
		return
	}
	decision, err := h.store.DecideToggle(id, n)
	if err != nil {
		h.respondStoreError(w, err, "server.handleDecideToggle")
		return
	}
	h.writeJSON(w, http.StatusOK, decision)
}

func (h *handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, n, err := installmentPath(r)
	if err != nil {
		h.respondStoreError(w, err, "server.handleToggle")
		return
	}
	var req toggleRequest
	if err := h.decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.respondStoreError(w, err, "server.handleToggle")
		return
	}
	req.Confirm = req.Confirm || confirmed(r)

	inst, decision, err := h.store.Toggle(r.Context(), id, n, req.Amount, req.Confirm)
	if err != nil {
		h.respondStoreError(w, err, "server.handleToggle")
		return
	}
	loan, err := h.store.Loan(id)
	if err != nil {
		h.respondStoreError(w, err, "server.handleToggle")
		return
	}
	h.writeJSON(w, http.StatusOK, toggleResponse{Installment: viewOf(loan, inst), Decision: decision})
}

func (h *handler) handleMarkPaid(w http.ResponseWriter, r *http.Request) {
	var req markPaidRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.respondStoreError(w, err, "server.handleMarkPaid")
		return
	}
	refs := append([]store.InstallmentRef(nil), req.Items...)
	for _, raw := range req.Refs {
		ref, err := store.ParseInstallmentRef(raw)
		if err != nil {
			h.respondStoreError(w, err, "server.handleMarkPaid")
			return
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		h.respondErrorWithOp(w, http.StatusBadRequest, "no installments selected", "server.handleMarkPaid")
		return
	}

	changed, err := h.store.MarkPaid(r.Context(), refs, req.Confirm || confirmed(r))
	if err != nil {
		h.respondStoreError(w, err, "server.handleMarkPaid")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

func (h *handler) handleBillingDate(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	cardID, err := ledger.ParseID(values.Get("card"))
	if err != nil || cardID == 0 {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid card %q", values.Get("card")), "server.handleBillingDate")
		return
	}
	purchase, err := datetime.ParseDate(values.Get("purchase"))
	if err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("invalid purchase date: %v", err), "server.handleBillingDate")
		return
	}
	due, err := h.store.BillingDate(cardID, purchase)
	if err != nil {
		h.respondStoreError(w, err, "server.handleBillingDate")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"dueDate": datetime.FormatDate(due)})
}

func (h *handler) handleExport(w http.ResponseWriter, r *http.Request) {
	exportFormat := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if exportFormat == "" {
		exportFormat = constants.ExportFormatCSV
	}
	if err := validation.ValidateExportFormat(exportFormat); err != nil {
		h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), "server.handleExport")
		return
	}

	filters, err := filtersFromRequest(r)
	if err != nil {
		h.respondStoreError(w, err, "server.handleExport")
		return
	}
	result := h.store.Query(filters)

	var buf bytes.Buffer
	if err := export.Write(&buf, exportFormat, result.Rows, h.now()); err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, fmt.Sprintf("failed to build export: %v", err), "server.handleExport")
		return
	}

	w.Header().Set("Content-Type", export.ContentType(exportFormat))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": export.FileName(exportFormat)}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write export",
			zap.String("op", "server.handleExport"),
			zap.Error(err),
		)
	}
}

func (h *handler) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "debtorID")
	if err != nil {
		h.respondStoreError(w, err, "server.handleReport")
		return
	}
	debtor, err := h.store.Debtor(id)
	if err != nil {
		h.respondStoreError(w, err, "server.handleReport")
		return
	}

	msg, pending := report.DebtorMessage(debtor, h.store.Loans(), h.now())
	resp := reportResponse{Pending: pending, Message: msg}
	if pending {
		link, err := report.WhatsAppLink(debtor.Phone, msg.Text, h.countryCode)
		switch {
		case errors.Is(err, report.ErrNoPhone):
			resp.Warning = err.Error()
		case err != nil:
			h.respondStoreError(w, err, "server.handleReport")
			return
		default:
			resp.Message.Link = link
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleBilling(w http.ResponseWriter, r *http.Request) {
	filters, err := filtersFromRequest(r)
	if err != nil {
		h.respondStoreError(w, err, "server.handleBilling")
		return
	}
	billing := report.BillingSummary(h.store.Query(filters), h.store.Debtors(), h.now())
	h.writeJSON(w, http.StatusOK, billing)
}

func (h *handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	backup := h.store.Snapshot()
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": store.BackupFileName(h.now())}))
	h.writeJSON(w, http.StatusOK, backup)
}

// handleRestore accepts the backup either as a raw JSON body or as the
// "file" field of a multipart upload.
func (h *handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var body io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), "server.handleRestore")
				return
			}
			h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), "server.handleRestore")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, "missing backup file", "server.handleRestore")
			return
		}
		defer func() {
			if closeErr := file.Close(); closeErr != nil {
				h.logger.Warn("failed to close uploaded file",
					zap.String("op", "server.handleRestore"),
					zap.Error(closeErr),
				)
			}
		}()
		body = file
	}

	backup, err := store.DecodeBackup(body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), "server.handleRestore")
			return
		}
		h.respondStoreError(w, err, "server.handleRestore")
		return
	}
	if err := h.store.Restore(r.Context(), *backup, confirmed(r)); err != nil {
		h.respondStoreError(w, err, "server.handleRestore")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{
		"debtors": len(h.store.Debtors()),
		"cards":   len(h.store.Cards()),
		"loans":   len(h.store.Loans()),
	})
}
