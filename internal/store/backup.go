package store

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/datetime"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
)

// Backup is a full export of the dataset.
type Backup struct {
	Loans      []ledger.Loan   `json:"loans"`
	Debtors    []ledger.Debtor `json:"debtors"`
	Cards      []ledger.Card   `json:"cards"`
	BackupDate string          `json:"backupDate"`
}

// NewBackup stamps a backup of the given snapshots.
func NewBackup(loans []ledger.Loan, debtors []ledger.Debtor, cards []ledger.Card, now time.Time) Backup {
	return Backup{
		Loans:      nonNil(loans),
		Debtors:    nonNil(debtors),
		Cards:      nonNil(cards),
		BackupDate: now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

// BackupFileName returns the download name of a backup taken at now.
func BackupFileName(now time.Time) string {
	return fmt.Sprintf("backup_painel_%d.json", now.UnixMilli())
}

// DecodeBackup reads a backup document. Documents without loans or debtors
// are rejected; a missing cards list restores as empty.
func DecodeBackup(r io.Reader) (*Backup, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: backup is not a JSON object: %w", ledger.ErrDataShape, err)
	}
	for _, key := range []string{"loans", "debtors"} {
		value, ok := raw[key]
		if !ok || strings.TrimSpace(string(value)) == "null" {
			return nil, fmt.Errorf("%w: backup is missing %q", ledger.ErrValidation, key)
		}
	}

	var backup Backup
	if err := json.Unmarshal(raw["loans"], &backup.Loans); err != nil {
		return nil, fmt.Errorf("%w: backup loans: %v", ledger.ErrDataShape, err)
	}
	if err := json.Unmarshal(raw["debtors"], &backup.Debtors); err != nil {
		return nil, fmt.Errorf("%w: backup debtors: %v", ledger.ErrDataShape, err)
	}
	if value, ok := raw["cards"]; ok {
		if err := json.Unmarshal(value, &backup.Cards); err != nil {
			return nil, fmt.Errorf("%w: backup cards: %v", ledger.ErrDataShape, err)
		}
	}
	if value, ok := raw["backupDate"]; ok {
		_ = json.Unmarshal(value, &backup.BackupDate)
	}

	backup.Loans = nonNil(backup.Loans)
	backup.Debtors = nonNil(backup.Debtors)
	backup.Cards = nonNil(backup.Cards)
	return &backup, nil
}

// LegacyInstallment is an installment of the flat legacy format, which
// tracked only a status.
type LegacyInstallment struct {
	Number int           `json:"number"`
	Value  float64       `json:"value"`
	Status ledger.Status `json:"status"`
}

// LegacyRecord is one entry of the flat legacy list, holding a debtor and
// a single loan together.
type LegacyRecord struct {
	ID                ledger.ID           `json:"id"`
	Creditor          string              `json:"creditor"`
	Phone             string              `json:"phone"`
	Notes             string              `json:"notes"`
	Type              ledger.LoanType     `json:"type"`
	TotalValue        float64             `json:"totalValue"`
	InstallmentsCount int                 `json:"installmentsCount"`
	Installments      []LegacyInstallment `json:"installments"`
	StartDate         string              `json:"startDate"`
}

// ImportLegacy splits every legacy record into a debtor and a loan. The
// debtor keeps the legacy ID and the loan ID is derived from it. Paid legacy
// installments import as fully paid, everything else as unpaid.
func ImportLegacy(records []LegacyRecord) ([]ledger.Debtor, []ledger.Loan, error) {
	debtors := make([]ledger.Debtor, 0, len(records))
	loans := make([]ledger.Loan, 0, len(records))

	for _, rec := range records {
		name := strings.TrimSpace(rec.Creditor)
		if name == "" {
			name = constants.UnknownDebtorName
		}
		debtors = append(debtors, ledger.Debtor{
			ID:    rec.ID,
			Name:  name,
			Phone: rec.Phone,
			Notes: rec.Notes,
		})

		start, err := datetime.ParseOptionalDate(rec.StartDate)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: legacy record %s: %v", ledger.ErrDataShape, rec.ID, err)
		}

		installments := make([]ledger.Installment, 0, len(rec.Installments))
		for _, li := range rec.Installments {
			inst := ledger.Installment{Number: li.Number, Value: li.Value}
			if li.Status == ledger.StatusPaid {
				inst.PaidValue = li.Value
			}
			installments = append(installments, inst)
		}

		count := rec.InstallmentsCount
		if count == 0 {
			count = len(installments)
		}
		loanType := rec.Type
		if t, err := ledger.ParseLoanType(string(rec.Type)); err == nil {
			loanType = t
		}

		loans = append(loans, ledger.Loan{
			ID:                ledger.LegacyLoanID(rec.ID),
			DebtorID:          rec.ID,
			Type:              loanType,
			StartDate:         start,
			TotalValue:        rec.TotalValue,
			InstallmentsCount: count,
			Installments:      installments,
			Desc:              rec.Notes,
		})
	}
	return debtors, loans, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
