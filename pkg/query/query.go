// Package query joins loans with their debtors and cards, filters them and
// flattens the result into installment rows with aggregate totals.
package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/datetime"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
	"github.com/iwvelando/installment-ledger/pkg/mathutil"
)

// Filters restricts a query. Zero values mean no constraint and all set
// filters must match.
type Filters struct {
	SearchText   string
	DebtorID     ledger.ID
	LoanType     ledger.LoanType
	CardDueDay   int
	Status       ledger.Status
	ExactDueDate time.Time
	DueDateStart time.Time
	DueDateEnd   time.Time
}

// JoinedLoan is a loan carrying the display fields of its debtor and card.
// CardDueDay is zero for cash loans and for card loans whose card is gone.
type JoinedLoan struct {
	ledger.Loan
	DebtorName string
	CardName   string
	CardDueDay int
}

// Row is one installment promoted to a standalone record.
type Row struct {
	LoanID       ledger.ID
	DebtorID     ledger.ID
	DebtorName   string
	Desc         string
	Type         ledger.LoanType
	CardName     string
	PurchaseDate time.Time
	Number       int
	TotalCount   int
	Value        float64
	PaidValue    float64
	Status       ledger.Status
	DueDate      time.Time
}

// Remaining returns the unpaid part of the row's installment.
func (r Row) Remaining() float64 {
	return mathutil.Max(0, r.Value-r.PaidValue)
}

// MarshalJSON writes dates as YYYY-MM-DD.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		LoanID       ledger.ID       `json:"loanId"`
		DebtorID     ledger.ID       `json:"debtorId"`
		DebtorName   string          `json:"debtorName"`
		Desc         string          `json:"desc"`
		Type         ledger.LoanType `json:"type"`
		CardName     string          `json:"cardName"`
		PurchaseDate string          `json:"purchaseDate"`
		Number       int             `json:"number"`
		TotalCount   int             `json:"totalCount"`
		Value        float64         `json:"value"`
		PaidValue    float64         `json:"paidValue"`
		Remaining    float64         `json:"remaining"`
		Status       ledger.Status   `json:"status"`
		DueDate      string          `json:"dueDate"`
	}{
		LoanID:       r.LoanID,
		DebtorID:     r.DebtorID,
		DebtorName:   r.DebtorName,
		Desc:         r.Desc,
		Type:         r.Type,
		CardName:     r.CardName,
		PurchaseDate: datetime.FormatDate(r.PurchaseDate),
		Number:       r.Number,
		TotalCount:   r.TotalCount,
		Value:        r.Value,
		PaidValue:    r.PaidValue,
		Remaining:    r.Remaining(),
		Status:       r.Status,
		DueDate:      datetime.FormatDate(r.DueDate),
	})
}

// Totals are the KPIs of the filtered rows.
type Totals struct {
	Expected float64 `json:"expected"`
	Received float64 `json:"received"`
	Pending  float64 `json:"pending"`
	Count    int     `json:"count"`
}

// Result is the outcome of Run.
type Result struct {
	Loans  []JoinedLoan
	Rows   []Row
	Totals Totals
}

// Run joins, filters and flattens loans. It does not modify its inputs.
func Run(loans []ledger.Loan, debtors []ledger.Debtor, cards []ledger.Card, filters Filters) Result {
	debtorNames := make(map[ledger.ID]string, len(debtors))
	for _, d := range debtors {
		debtorNames[d.ID] = d.Name
	}
	cardsByID := make(map[ledger.ID]ledger.Card, len(cards))
	for _, c := range cards {
		cardsByID[c.ID] = c
	}

	// Casers keep state and must not be shared between goroutines.
	folder := cases.Fold()
	search := folder.String(strings.TrimSpace(filters.SearchText))

	result := Result{Loans: []JoinedLoan{}, Rows: []Row{}}
	for _, loan := range loans {
		joined := join(loan, debtorNames, cardsByID)
		if search != "" && !strings.Contains(folder.String(haystack(joined)), search) {
			continue
		}
		if !matchLoan(joined, filters) {
			continue
		}
		result.Loans = append(result.Loans, joined)

		for _, inst := range loan.Installments {
			row := flatten(joined, inst)
			if !matchRow(row, filters) {
				continue
			}
			result.Rows = append(result.Rows, row)
		}
	}

	SortRows(result.Rows)
	result.Totals = Aggregate(result.Rows)
	return result
}

func join(loan ledger.Loan, debtorNames map[ledger.ID]string, cardsByID map[ledger.ID]ledger.Card) JoinedLoan {
	joined := JoinedLoan{Loan: loan.Clone(), DebtorName: constants.RemovedDebtorName, CardName: constants.NoCardName}
	if name, ok := debtorNames[loan.DebtorID]; ok {
		joined.DebtorName = name
	}
	if loan.IsCard() {
		if card, ok := cardsByID[loan.CardID]; ok {
			joined.CardName = card.Name
			joined.CardDueDay = card.DueDay
		}
	}
	return joined
}

func matchLoan(loan JoinedLoan, filters Filters) bool {
	if filters.DebtorID != 0 && loan.DebtorID != filters.DebtorID {
		return false
	}
	if filters.LoanType != "" && loan.Type != filters.LoanType {
		return false
	}
	if filters.CardDueDay != 0 && loan.CardDueDay != filters.CardDueDay {
		return false
	}
	return true
}

func haystack(loan JoinedLoan) string {
	return loan.DebtorName + " " + loan.Desc + " " + loan.CardName + " " +
		strconv.FormatFloat(loan.TotalValue, 'f', -1, 64)
}

func flatten(loan JoinedLoan, inst ledger.Installment) Row {
	return Row{
		LoanID:       loan.ID,
		DebtorID:     loan.DebtorID,
		DebtorName:   loan.DebtorName,
		Desc:         loan.Desc,
		Type:         loan.Type,
		CardName:     loan.CardName,
		PurchaseDate: loan.PurchaseDate,
		Number:       inst.Number,
		TotalCount:   loan.InstallmentsCount,
		Value:        inst.Value,
		PaidValue:    inst.PaidValue,
		Status:       inst.Status(),
		DueDate:      loan.DueDate(inst.Number),
	}
}

func matchRow(row Row, filters Filters) bool {
	if filters.Status != "" && row.Status != filters.Status {
		return false
	}
	if !filters.ExactDueDate.IsZero() && !row.DueDate.Equal(datetime.Day(filters.ExactDueDate)) {
		return false
	}
	if !filters.DueDateStart.IsZero() && row.DueDate.Before(datetime.Day(filters.DueDateStart)) {
		return false
	}
	if !filters.DueDateEnd.IsZero() && row.DueDate.After(datetime.Day(filters.DueDateEnd)) {
		return false
	}
	return true
}

// SortRows orders rows by due date, then loan ID, then installment number.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.LoanID != b.LoanID {
			return a.LoanID < b.LoanID
		}
		return a.Number < b.Number
	})
}

// Aggregate sums the rows with decimal arithmetic.
func Aggregate(rows []Row) Totals {
	var expected, received mathutil.Accumulator
	for _, row := range rows {
		expected.Add(row.Value)
		received.Add(row.PaidValue)
	}
	return Totals{
		Expected: expected.Value(),
		Received: received.Value(),
		Pending:  expected.Sub(received),
		Count:    len(rows),
	}
}

// Filter parameter names accepted by ParseFilters.
const (
	ParamSearch       = "search"
	ParamDebtor       = "debtor"
	ParamType         = "type"
	ParamCardDueDay   = "dueDay"
	ParamStatus       = "status"
	ParamExactDueDate = "date"
	ParamDueDateStart = "start"
	ParamDueDateEnd   = "end"
)

// ParseFilters builds Filters from string parameters. Empty values and "all"
// leave a filter unset.
func ParseFilters(params map[string]string) (Filters, error) {
	var filters Filters
	get := func(key string) string {
		value := strings.TrimSpace(params[key])
		if strings.EqualFold(value, constants.FilterAll) {
			return ""
		}
		return value
	}

	filters.SearchText = strings.TrimSpace(params[ParamSearch])

	if v := get(ParamDebtor); v != "" {
		id, err := ledger.ParseID(v)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: %s: %v", ledger.ErrValidation, ParamDebtor, err)
		}
		filters.DebtorID = id
	}
	if v := get(ParamType); v != "" {
		t, err := ledger.ParseLoanType(v)
		if err != nil {
			return Filters{}, err
		}
		filters.LoanType = t
	}
	if v := get(ParamCardDueDay); v != "" {
		day, err := strconv.Atoi(v)
		if err != nil || day < 1 || day > constants.MaxDueDay {
			return Filters{}, fmt.Errorf("%w: %s must be a day between 1 and %d, got %q", ledger.ErrValidation, ParamCardDueDay, constants.MaxDueDay, v)
		}
		filters.CardDueDay = day
	}
	if v := get(ParamStatus); v != "" {
		s, err := ledger.ParseStatus(v)
		if err != nil {
			return Filters{}, err
		}
		filters.Status = s
	}

	dates := []struct {
		key    string
		target *time.Time
	}{
		{ParamExactDueDate, &filters.ExactDueDate},
		{ParamDueDateStart, &filters.DueDateStart},
		{ParamDueDateEnd, &filters.DueDateEnd},
	}
	for _, d := range dates {
		v := get(d.key)
		if v == "" {
			continue
		}
		parsed, err := datetime.ParseDate(v)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: %s: %v", ledger.ErrValidation, d.key, err)
		}
		*d.target = parsed
	}
	return filters, nil
}

// DueDays returns the distinct card due days in ascending order.
func DueDays(cards []ledger.Card) []int {
	seen := make(map[int]bool)
	days := []int{}
	for _, c := range cards {
		if c.DueDay == 0 || seen[c.DueDay] {
			continue
		}
		seen[c.DueDay] = true
		days = append(days, c.DueDay)
	}
	sort.Ints(days)
	return days
}

// DueDates returns the distinct installment due dates in ascending order.
func DueDates(loans []ledger.Loan) []time.Time {
	seen := make(map[time.Time]bool)
	dates := []time.Time{}
	for _, loan := range loans {
		for _, inst := range loan.Installments {
			due := loan.DueDate(inst.Number)
			if seen[due] {
				continue
			}
			seen[due] = true
			dates = append(dates, due)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
