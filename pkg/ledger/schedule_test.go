package ledger

import (
	"errors"
	"math"
	"testing"

	"github.com/iwvelando/installment-ledger/pkg/datetime"
)

func TestGenerateInstallments(t *testing.T) {
	tests := []struct {
		name          string
		total         float64
		count         int
		initiallyPaid int
		expectedValue float64
		expectedPaid  int
	}{
		{"Even split", 300, 3, 0, 100, 0},
		{"Single installment", 59.9, 1, 0, 59.9, 0},
		{"Zero total", 0, 4, 0, 0, 0},
		{"Legacy migration marks first installments paid", 1000, 4, 2, 250, 2},
		{"Paid count above count pays everything", 90, 3, 5, 30, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := GenerateInstallments(tt.total, tt.count, tt.initiallyPaid)
			if err != nil {
				t.Fatalf("GenerateInstallments() error = %v", err)
			}
			if len(list) != tt.count {
				t.Fatalf("len = %d, expected %d", len(list), tt.count)
			}
			paid := 0
			for i, inst := range list {
				if inst.Number != i+1 {
					t.Errorf("installment %d has number %d", i, inst.Number)
				}
				if math.Abs(inst.Value-tt.expectedValue) > 1e-9 {
					t.Errorf("installment %d value = %v, expected %v", inst.Number, inst.Value, tt.expectedValue)
				}
				if inst.Status() == StatusPaid && tt.total > 0 {
					paid++
				}
			}
			if tt.total > 0 && paid != tt.expectedPaid {
				t.Errorf("paid installments = %d, expected %d", paid, tt.expectedPaid)
			}
		})
	}
}

func TestGenerateInstallmentsUnevenSplitIsNotRedistributed(t *testing.T) {
	list, err := GenerateInstallments(100, 3, 0)
	if err != nil {
		t.Fatalf("GenerateInstallments() error = %v", err)
	}
	for _, inst := range list {
		if inst.Value != list[0].Value {
			t.Errorf("installment %d value %v differs from first %v", inst.Number, inst.Value, list[0].Value)
		}
		if inst.Status() != StatusPending {
			t.Errorf("installment %d status = %s, expected %s", inst.Number, inst.Status(), StatusPending)
		}
	}
}

func TestGenerateInstallmentsRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name          string
		total         float64
		count         int
		initiallyPaid int
	}{
		{"Zero count", 100, 0, 0},
		{"Negative count", 100, -2, 0},
		{"Negative total", -1, 2, 0},
		{"NaN total", math.NaN(), 2, 0},
		{"Infinite total", math.Inf(1), 2, 0},
		{"Negative initially paid", 100, 2, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := GenerateInstallments(tt.total, tt.count, tt.initiallyPaid)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("GenerateInstallments() error = %v, expected ErrValidation", err)
			}
		})
	}
}

func TestNewLoanCash(t *testing.T) {
	loan, err := NewLoan(42, LoanInput{
		DebtorID:          7,
		Type:              LoanTypeCash,
		CardID:            3,
		StartDate:         "2024-01-15",
		TotalValue:        300,
		InstallmentsCount: 3,
		Desc:              "  Geladeira ",
	}, nil)
	if err != nil {
		t.Fatalf("NewLoan() error = %v", err)
	}
	if loan.CardID != 0 {
		t.Errorf("cash loan kept card id %s", loan.CardID)
	}
	if loan.Desc != "Geladeira" {
		t.Errorf("Desc = %q", loan.Desc)
	}
	expected := []string{"2024-01-15", "2024-02-15", "2024-03-15"}
	for i, inst := range loan.Installments {
		if inst.Value != 100 {
			t.Errorf("installment %d value = %v, expected 100", inst.Number, inst.Value)
		}
		if got := datetime.FormatDate(loan.DueDate(inst.Number)); got != expected[i] {
			t.Errorf("installment %d due = %s, expected %s", inst.Number, got, expected[i])
		}
	}
}

func TestNewLoanCardDerivesStartDate(t *testing.T) {
	card := &Card{ID: 5, Name: "Nubank", DueDay: 10}
	loan, err := NewLoan(1, LoanInput{
		DebtorID:          7,
		Type:              "card",
		CardID:            5,
		PurchaseDate:      "2024-01-25",
		TotalValue:        120,
		InstallmentsCount: 2,
	}, card)
	if err != nil {
		t.Fatalf("NewLoan() error = %v", err)
	}
	if loan.Type != LoanTypeCard {
		t.Errorf("Type = %s, expected %s", loan.Type, LoanTypeCard)
	}
	if got := datetime.FormatDate(loan.StartDate); got != "2024-02-10" {
		t.Errorf("StartDate = %s, expected 2024-02-10", got)
	}
	if got := datetime.FormatDate(loan.PurchaseDate); got != "2024-01-25" {
		t.Errorf("PurchaseDate = %s, expected 2024-01-25", got)
	}
}

func TestNewLoanExplicitStartDateWins(t *testing.T) {
	card := &Card{ID: 5, DueDay: 10}
	loan, err := NewLoan(1, LoanInput{
		DebtorID:          7,
		Type:              LoanTypeCard,
		CardID:            5,
		PurchaseDate:      "2024-01-25",
		StartDate:         "2024-03-01",
		TotalValue:        120,
		InstallmentsCount: 2,
	}, card)
	if err != nil {
		t.Fatalf("NewLoan() error = %v", err)
	}
	if got := datetime.FormatDate(loan.StartDate); got != "2024-03-01" {
		t.Errorf("StartDate = %s, expected 2024-03-01", got)
	}
}

func TestNewLoanRejectsInvalidInput(t *testing.T) {
	card := &Card{ID: 5, DueDay: 10}
	valid := LoanInput{
		DebtorID:          7,
		Type:              LoanTypeCash,
		StartDate:         "2024-01-15",
		TotalValue:        100,
		InstallmentsCount: 1,
	}

	tests := []struct {
		name     string
		mutate   func(in *LoanInput)
		card     *Card
		expected error
	}{
		{"Missing debtor", func(in *LoanInput) { in.DebtorID = 0 }, nil, ErrValidation},
		{"Zero total", func(in *LoanInput) { in.TotalValue = 0 }, nil, ErrValidation},
		{"Zero installments", func(in *LoanInput) { in.InstallmentsCount = 0 }, nil, ErrValidation},
		{"Unknown type", func(in *LoanInput) { in.Type = "pix" }, nil, ErrValidation},
		{"Card loan without card", func(in *LoanInput) { in.Type = LoanTypeCard }, nil, ErrValidation},
		{"Card loan with unknown card", func(in *LoanInput) { in.Type = LoanTypeCard; in.CardID = 9 }, card, ErrNotFound},
		{"Bad start date", func(in *LoanInput) { in.StartDate = "15/01/2024" }, nil, ErrValidation},
		{"Missing start date", func(in *LoanInput) { in.StartDate = "" }, nil, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := NewLoan(1, in, tt.card)
			if !errors.Is(err, tt.expected) {
				t.Errorf("NewLoan() error = %v, expected %v", err, tt.expected)
			}
		})
	}
}

func TestNewDebtorAndCard(t *testing.T) {
	debtor, err := NewDebtor(1, DebtorInput{Name: " Maria ", Phone: "(11) 98765-4321"})
	if err != nil {
		t.Fatalf("NewDebtor() error = %v", err)
	}
	if debtor.Name != "Maria" {
		t.Errorf("Name = %q", debtor.Name)
	}
	if _, err := NewDebtor(2, DebtorInput{Name: "  "}); !errors.Is(err, ErrValidation) {
		t.Errorf("NewDebtor() blank name error = %v", err)
	}
	if _, err := NewDebtor(3, DebtorInput{Name: "João", Phone: "abc"}); !errors.Is(err, ErrValidation) {
		t.Errorf("NewDebtor() bad phone error = %v", err)
	}

	if _, err := NewCard(4, CardInput{Name: "Visa", Last4: "1234", DueDay: 31}); err != nil {
		t.Errorf("NewCard() error = %v", err)
	}
	for _, in := range []CardInput{
		{Name: "Visa", DueDay: 0},
		{Name: "Visa", DueDay: 32},
		{Name: "Visa", Last4: "12a4", DueDay: 5},
		{Name: "", DueDay: 5},
	} {
		if _, err := NewCard(5, in); !errors.Is(err, ErrValidation) {
			t.Errorf("NewCard(%+v) error = %v, expected ErrValidation", in, err)
		}
	}
}
