// Package ledger holds the installment ledger domain: debtors, cards, loans
// and their installment schedules, plus the payment rules applied to them.
package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/installment-ledger/pkg/datetime"
	"github.com/iwvelando/installment-ledger/pkg/mathutil"
)

// legacyLoanSuffix marks loan IDs produced by the flat-list migration.
const legacyLoanSuffix = "_loan"

// ID identifies debtors, cards and loans. New IDs are creation-time unix
// millisecond timestamps.
type ID int64

// LegacyLoanID derives the loan ID for a legacy record, the integer form of
// "<legacyID>_loan".
func LegacyLoanID(legacyID ID) ID {
	return legacyID*10 + 1
}

// ParseID parses a decimal ID or a legacy "<n>_loan" ID.
func ParseID(value string) (ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	if strings.HasSuffix(trimmed, legacyLoanSuffix) {
		base, err := strconv.ParseInt(strings.TrimSuffix(trimmed, legacyLoanSuffix), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid legacy loan id %q: %w", value, err)
		}
		return LegacyLoanID(ID(base)), nil
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", value, err)
	}
	return ID(n), nil
}

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// UnmarshalJSON accepts numbers, numeric strings and legacy "<n>_loan" strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*id = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseID(s)
		if err != nil {
			return err
		}
		*id = parsed
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*id = ID(n)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || !mathutil.IsFinite(f) {
		return fmt.Errorf("invalid id %s", raw)
	}
	*id = ID(int64(f))
	return nil
}

// LoanType distinguishes cash loans from card purchases.
type LoanType string

// Loan types, stored with their Portuguese wire values.
const (
	LoanTypeCash LoanType = "dinheiro"
	LoanTypeCard LoanType = "cartao"
)

// ParseLoanType accepts the wire values and their English names.
func ParseLoanType(value string) (LoanType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(LoanTypeCash), "cash":
		return LoanTypeCash, nil
	case string(LoanTypeCard), "card":
		return LoanTypeCard, nil
	}
	return "", fmt.Errorf("%w: unknown loan type %q", ErrValidation, value)
}

// Debtor is a person who owes money.
type Debtor struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

// Card is a billing instrument with a fixed monthly due day.
type Card struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Last4  string `json:"last4"`
	DueDay int    `json:"dueDay"`
}

// Installment is one scheduled repayment of a loan. Its status is always
// derived from Value and PaidValue and is never stored.
type Installment struct {
	Number    int     `json:"number"`
	Value     float64 `json:"value"`
	PaidValue float64 `json:"paidValue"`
}

// Status derives the installment status.
func (i Installment) Status() Status {
	return DeriveStatus(i.Value, i.PaidValue)
}

// Remaining returns the unpaid part of the installment.
func (i Installment) Remaining() float64 {
	return mathutil.Max(0, i.Value-i.PaidValue)
}

// UnmarshalJSON reads stored installments, reconciling the legacy stored
// status: an installment saved as paid without a paid value is imported as
// fully paid.
func (i *Installment) UnmarshalJSON(data []byte) error {
	var wire struct {
		Number    int      `json:"number"`
		Value     float64  `json:"value"`
		PaidValue *float64 `json:"paidValue"`
		Status    Status   `json:"status"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	i.Number = wire.Number
	i.Value = wire.Value
	i.PaidValue = 0
	if wire.PaidValue != nil {
		i.PaidValue = *wire.PaidValue
	}
	if wire.Status == StatusPaid && i.PaidValue == 0 {
		i.PaidValue = i.Value
	}
	return nil
}

// Loan is a lent amount split into installments. Installments are owned
// exclusively by the loan.
type Loan struct {
	ID                ID
	DebtorID          ID
	Type              LoanType
	CardID            ID // zero for cash loans
	PurchaseDate      time.Time
	StartDate         time.Time
	TotalValue        float64
	InstallmentsCount int
	Installments      []Installment
	Desc              string
}

type loanJSON struct {
	ID                ID            `json:"id"`
	DebtorID          ID            `json:"debtorId"`
	Type              LoanType      `json:"type"`
	CardID            *ID           `json:"cardId"`
	PurchaseDate      *string       `json:"purchaseDate"`
	StartDate         string        `json:"startDate"`
	TotalValue        float64       `json:"totalValue"`
	InstallmentsCount int           `json:"installmentsCount"`
	Installments      []Installment `json:"installments"`
	Desc              string        `json:"desc"`
}

// MarshalJSON writes the loan in the stored layout with YYYY-MM-DD dates.
func (l Loan) MarshalJSON() ([]byte, error) {
	wire := loanJSON{
		ID:                l.ID,
		DebtorID:          l.DebtorID,
		Type:              l.Type,
		StartDate:         datetime.FormatDate(l.StartDate),
		TotalValue:        l.TotalValue,
		InstallmentsCount: l.InstallmentsCount,
		Installments:      l.Installments,
		Desc:              l.Desc,
	}
	if l.CardID != 0 {
		cardID := l.CardID
		wire.CardID = &cardID
	}
	if !l.PurchaseDate.IsZero() {
		purchase := datetime.FormatDate(l.PurchaseDate)
		wire.PurchaseDate = &purchase
	}
	if wire.Installments == nil {
		wire.Installments = []Installment{}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON reads the stored layout. Invalid dates are data-shape errors.
func (l *Loan) UnmarshalJSON(data []byte) error {
	var wire loanJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	start, err := datetime.ParseOptionalDate(wire.StartDate)
	if err != nil {
		return fmt.Errorf("%w: loan %s start date: %v", ErrDataShape, wire.ID, err)
	}
	var purchase time.Time
	if wire.PurchaseDate != nil {
		purchase, err = datetime.ParseOptionalDate(*wire.PurchaseDate)
		if err != nil {
			return fmt.Errorf("%w: loan %s purchase date: %v", ErrDataShape, wire.ID, err)
		}
	}
	*l = Loan{
		ID:                wire.ID,
		DebtorID:          wire.DebtorID,
		Type:              wire.Type,
		PurchaseDate:      purchase,
		StartDate:         start,
		TotalValue:        wire.TotalValue,
		InstallmentsCount: wire.InstallmentsCount,
		Installments:      wire.Installments,
		Desc:              wire.Desc,
	}
	if wire.CardID != nil {
		l.CardID = *wire.CardID
	}
	if l.InstallmentsCount == 0 {
		l.InstallmentsCount = len(l.Installments)
	}
	return nil
}

// Clone returns a deep copy of the loan.
func (l Loan) Clone() Loan {
	out := l
	out.Installments = append([]Installment(nil), l.Installments...)
	return out
}

// Installment returns a pointer to installment number n.
func (l *Loan) Installment(n int) (*Installment, error) {
	for i := range l.Installments {
		if l.Installments[i].Number == n {
			return &l.Installments[i], nil
		}
	}
	return nil, fmt.Errorf("%w: installment %d of loan %s", ErrNotFound, n, l.ID)
}

// Remaining returns the unpaid balance across all installments.
func (l Loan) Remaining() float64 {
	var total mathutil.Accumulator
	for _, inst := range l.Installments {
		total.Add(inst.Value - inst.PaidValue)
	}
	return total.Value()
}

// IsCard reports whether the loan is a card purchase.
func (l Loan) IsCard() bool {
	return l.Type == LoanTypeCard
}
