package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/mathutil"
)

// Status is the derived payment state of an installment.
type Status string

// Installment statuses, labelled in the single supported locale.
const (
	StatusPending Status = "Pendente"
	StatusPartial Status = "Parcial"
	StatusPaid    Status = "Pago"
)

// ParseStatus accepts the display labels and their English names.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "pendente", "pending":
		return StatusPending, nil
	case "parcial", "partial":
		return StatusPartial, nil
	case "pago", "paid":
		return StatusPaid, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, value)
}

// DeriveStatus is the single source of truth for installment status:
// paid within one cent of the value is Paid, any positive payment short of
// that is Partial, nothing paid is Pending.
func DeriveStatus(value, paidValue float64) Status {
	if paidValue >= value-constants.CurrencyTolerance {
		return StatusPaid
	}
	if paidValue > 0 {
		return StatusPartial
	}
	return StatusPending
}

// ApplyPayment adds amount to the installment's paid value, clamped to the
// installment value. Payments are additive and never decrease PaidValue.
func ApplyPayment(inst Installment, amount float64) (Installment, error) {
	if !mathutil.IsFinite(amount) || amount < 0 {
		return inst, fmt.Errorf("%w: payment amount must be a non-negative number, got %v", ErrValidation, amount)
	}
	if amount == 0 {
		return inst, nil
	}
	paid := mathutil.Min(inst.Value, inst.PaidValue+amount)
	if paid >= inst.Value-constants.CurrencyTolerance {
		paid = inst.Value
	}
	inst.PaidValue = paid
	return inst, nil
}

// ReversePayment discards every payment on the installment. Partial payment
// history is lost, so callers must confirm first.
func ReversePayment(inst Installment) Installment {
	inst.PaidValue = 0
	return inst
}

// MarkPaid pays the installment in full and reports whether it changed.
func MarkPaid(inst Installment) (Installment, bool) {
	if inst.Status() == StatusPaid {
		return inst, false
	}
	inst.PaidValue = inst.Value
	return inst, true
}

// Action is what a toggle on an installment will do.
type Action string

// Toggle actions
const (
	ActionPay     Action = "pay"
	ActionReverse Action = "reverse"
)

// ToggleDecision describes the effect of toggling an installment, decided
// before any mutation so that the caller can prompt for an amount or a
// confirmation.
type ToggleDecision struct {
	Action               Action  `json:"action"`
	Remaining            float64 `json:"remaining"`
	DefaultAmount        float64 `json:"defaultAmount"`
	RequiresConfirmation bool    `json:"requiresConfirmation"`
	Prompt               string  `json:"prompt"`
}

// DecideToggle picks reversal for a fully paid installment and payment of the
// remaining balance otherwise.
func DecideToggle(inst Installment) ToggleDecision {
	remaining := inst.Remaining()
	if inst.Status() == StatusPaid {
		return ToggleDecision{
			Action:               ActionReverse,
			Remaining:            0,
			RequiresConfirmation: true,
			Prompt:               ConfirmationPrompt(OpReversePayment),
		}
	}
	return ToggleDecision{
		Action:        ActionPay,
		Remaining:     remaining,
		DefaultAmount: remaining,
		Prompt:        "Digite o valor para ABATER (ou deixe vazio para QUITAR o restante)",
	}
}

// Toggle executes a decision. For payments amountInput is parsed with
// ParseAmountInput; reversals require confirmed.
func Toggle(inst Installment, amountInput string, confirmed bool) (Installment, ToggleDecision, error) {
	decision := DecideToggle(inst)
	switch decision.Action {
	case ActionReverse:
		if !confirmed {
			return inst, decision, fmt.Errorf("%w: %s", ErrConfirmationRequired, decision.Prompt)
		}
		return ReversePayment(inst), decision, nil
	default:
		amount, err := ParseAmountInput(amountInput, decision.DefaultAmount)
		if err != nil {
			return inst, decision, err
		}
		updated, err := ApplyPayment(inst, amount)
		return updated, decision, err
	}
}

// ParseAmountInput parses a user-entered amount. Blank input means the
// default (the remaining balance); a comma is accepted as decimal separator.
func ParseAmountInput(input string, defaultAmount float64) (float64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return defaultAmount, nil
	}
	trimmed = strings.TrimPrefix(trimmed, "R$")
	trimmed = strings.TrimSpace(trimmed)
	if strings.Contains(trimmed, ",") {
		trimmed = strings.ReplaceAll(trimmed, ".", "")
		trimmed = strings.ReplaceAll(trimmed, ",", ".")
	}
	amount, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || !mathutil.IsFinite(amount) || amount < 0 {
		return 0, fmt.Errorf("%w: invalid amount %q", ErrValidation, input)
	}
	return amount, nil
}

// Operation names a mutation the ledger can perform.
type Operation string

// Operations
const (
	OpAddDebtor      Operation = "add-debtor"
	OpDeleteDebtor   Operation = "delete-debtor"
	OpAddCard        Operation = "add-card"
	OpDeleteCard     Operation = "delete-card"
	OpAddLoan        Operation = "add-loan"
	OpDeleteLoan     Operation = "delete-loan"
	OpApplyPayment   Operation = "apply-payment"
	OpReversePayment Operation = "reverse-payment"
	OpMarkPaid       Operation = "mark-paid"
	OpRestore        Operation = "restore"
)

var confirmationPrompts = map[Operation]string{
	OpDeleteDebtor:   "Excluir devedor e todos seus empréstimos?",
	OpDeleteCard:     "Excluir cartão?",
	OpDeleteLoan:     "Excluir este empréstimo e TODAS as suas parcelas?",
	OpReversePayment: "Marcar esta parcela como PENDENTE (estornar)?",
	OpMarkPaid:       "Marcar os itens selecionados como PAGO?",
	OpRestore:        "ATENÇÃO: Isso irá SUBSTITUIR todos os dados atuais pelos do backup. Deseja continuar?",
}

// RequiresConfirmation reports whether op must be confirmed by the user
// before it is performed.
func RequiresConfirmation(op Operation) bool {
	_, ok := confirmationPrompts[op]
	return ok
}

// ConfirmationPrompt returns the question to ask before op, or "" when op
// needs no confirmation.
func ConfirmationPrompt(op Operation) string {
	return confirmationPrompts[op]
}

// Confirm returns ErrConfirmationRequired when op needs a confirmation that
// was not given.
func Confirm(op Operation, confirmed bool) error {
	if RequiresConfirmation(op) && !confirmed {
		return fmt.Errorf("%w: %s", ErrConfirmationRequired, ConfirmationPrompt(op))
	}
	return nil
}
