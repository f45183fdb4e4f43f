// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
	"github.com/iwvelando/installment-ledger/pkg/mathutil"
)

// FindLoan finds a loan by ID in the loans slice.
// Returns a pointer to the loan if found, nil otherwise.
func FindLoan(loans []ledger.Loan, id ledger.ID) *ledger.Loan {
	for i := range loans {
		if loans[i].ID == id {
			return &loans[i]
		}
	}
	return nil
}

// FindDebtorByName finds the first debtor with the given name.
func FindDebtorByName(debtors []ledger.Debtor, name string) *ledger.Debtor {
	for i := range debtors {
		if debtors[i].Name == name {
			return &debtors[i]
		}
	}
	return nil
}

// AlmostEqual reports whether two currency amounts agree within one cent.
func AlmostEqual(a, b float64) bool {
	return mathutil.WithinTolerance(a, b, constants.CurrencyTolerance)
}
