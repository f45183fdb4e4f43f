package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/installment-ledger/pkg/datetime"
	"github.com/iwvelando/installment-ledger/pkg/duedate"
	"github.com/iwvelando/installment-ledger/pkg/mathutil"
	"github.com/iwvelando/installment-ledger/pkg/validation"
)

// GenerateInstallments splits total into count equal installments. The first
// initiallyPaid installments are created fully paid; only legacy migration
// passes a non-zero value. Shares are not rounded, so for totals that do not
// divide evenly the sum may drift from total by sub-cent amounts.
func GenerateInstallments(total float64, count, initiallyPaid int) ([]Installment, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: installment count must be at least 1, got %d", ErrValidation, count)
	}
	if !mathutil.IsFinite(total) || total < 0 {
		return nil, fmt.Errorf("%w: total must be a non-negative number, got %v", ErrValidation, total)
	}
	if initiallyPaid < 0 {
		return nil, fmt.Errorf("%w: initially paid count must not be negative, got %d", ErrValidation, initiallyPaid)
	}

	value := total / float64(count)
	list := make([]Installment, 0, count)
	for n := 1; n <= count; n++ {
		inst := Installment{Number: n, Value: value}
		if n <= initiallyPaid {
			inst.PaidValue = value
		}
		list = append(list, inst)
	}
	return list, nil
}

// DebtorInput is the user-entered data for a new debtor.
type DebtorInput struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"omitempty,phone"`
	Notes string `json:"notes"`
}

// CardInput is the user-entered data for a new card.
type CardInput struct {
	Name   string `json:"name" validate:"required"`
	Last4  string `json:"last4" validate:"omitempty,numeric,max=4"`
	DueDay int    `json:"dueDay" validate:"min=1,max=31"`
}

// LoanInput is the user-entered data for a new loan. Dates are YYYY-MM-DD.
type LoanInput struct {
	DebtorID          ID       `json:"debtorId" validate:"required"`
	Type              LoanType `json:"type" validate:"required,oneof=dinheiro cartao"`
	CardID            ID       `json:"cardId" validate:"required_if=Type cartao"`
	PurchaseDate      string   `json:"purchaseDate"`
	StartDate         string   `json:"startDate"`
	TotalValue        float64  `json:"totalValue" validate:"gt=0"`
	InstallmentsCount int      `json:"installmentsCount" validate:"min=1"`
	Desc              string   `json:"desc"`
}

func validateInput(v any) error {
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// NewDebtor validates in and builds a debtor with the given ID.
func NewDebtor(id ID, in DebtorInput) (Debtor, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateInput(in); err != nil {
		return Debtor{}, err
	}
	return Debtor{ID: id, Name: in.Name, Phone: in.Phone, Notes: in.Notes}, nil
}

// NewCard validates in and builds a card with the given ID.
func NewCard(id ID, in CardInput) (Card, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Last4 = strings.TrimSpace(in.Last4)
	if err := validateInput(in); err != nil {
		return Card{}, err
	}
	return Card{ID: id, Name: in.Name, Last4: in.Last4, DueDay: in.DueDay}, nil
}

// NewLoan validates in and builds a loan with a fresh installment schedule.
// card must be the referenced card for card loans and is ignored for cash
// loans. A card loan with a purchase date but no start date starts on the
// purchase's billing date.
func NewLoan(id ID, in LoanInput, card *Card) (Loan, error) {
	if t, err := ParseLoanType(string(in.Type)); err == nil {
		in.Type = t
	}
	if in.Type == LoanTypeCash {
		in.CardID = 0
	}
	if err := validateInput(in); err != nil {
		return Loan{}, err
	}
	if !mathutil.IsFinite(in.TotalValue) {
		return Loan{}, fmt.Errorf("%w: totalValue must be a finite number", ErrValidation)
	}

	purchase, err := datetime.ParseOptionalDate(in.PurchaseDate)
	if err != nil {
		return Loan{}, fmt.Errorf("%w: purchaseDate: %v", ErrValidation, err)
	}
	start, err := datetime.ParseOptionalDate(in.StartDate)
	if err != nil {
		return Loan{}, fmt.Errorf("%w: startDate: %v", ErrValidation, err)
	}

	if in.Type == LoanTypeCard {
		if card == nil || card.ID != in.CardID {
			return Loan{}, fmt.Errorf("%w: card %s", ErrNotFound, in.CardID)
		}
		if start.IsZero() && !purchase.IsZero() {
			start, err = duedate.BillingDate(purchase, card.DueDay)
			if err != nil {
				return Loan{}, fmt.Errorf("%w: %v", ErrValidation, err)
			}
		}
	}
	if start.IsZero() {
		return Loan{}, fmt.Errorf("%w: startDate is required", ErrValidation)
	}

	installments, err := GenerateInstallments(in.TotalValue, in.InstallmentsCount, 0)
	if err != nil {
		return Loan{}, err
	}

	return Loan{
		ID:                id,
		DebtorID:          in.DebtorID,
		Type:              in.Type,
		CardID:            in.CardID,
		PurchaseDate:      purchase,
		StartDate:         start,
		TotalValue:        in.TotalValue,
		InstallmentsCount: in.InstallmentsCount,
		Installments:      installments,
		Desc:              strings.TrimSpace(in.Desc),
	}, nil
}

// DueDate returns the due date of installment number n.
func (l Loan) DueDate(n int) time.Time {
	return duedate.InstallmentDueDate(l.StartDate, n)
}
