// Package duedate computes installment due dates and card billing dates.
package duedate

import (
	"fmt"
	"time"

	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/datetime"
)

// BillingDate maps a card purchase to the date its first installment is due.
//
// The candidate is the card due day in the purchase month, clamped to the
// month's last day. A candidate before the purchase rolls to the next month,
// and so does one fewer than ClosingWindowDays after it, approximating the
// card closing date. This is a heuristic, not a card-network billing model.
func BillingDate(purchase time.Time, cardDueDay int) (time.Time, error) {
	if cardDueDay < 1 || cardDueDay > constants.MaxDueDay {
		return time.Time{}, fmt.Errorf("card due day must be between 1 and %d, got %d", constants.MaxDueDay, cardDueDay)
	}
	if purchase.IsZero() {
		return time.Time{}, fmt.Errorf("purchase date is required")
	}

	purchase = datetime.Day(purchase)
	candidate := datetime.ClampedDate(purchase.Year(), purchase.Month(), cardDueDay)

	if candidate.Before(purchase) || datetime.DaysBetween(purchase, candidate) < constants.ClosingWindowDays {
		candidate = datetime.ClampedDate(purchase.Year(), purchase.Month()+1, cardDueDay)
	}
	return candidate, nil
}

// InstallmentDueDate returns the due date of installment number n of a loan
// whose first installment is due on start. Day-of-month overflow follows
// time.AddDate normalization.
func InstallmentDueDate(start time.Time, number int) time.Time {
	return datetime.AddMonths(start, number-1)
}
