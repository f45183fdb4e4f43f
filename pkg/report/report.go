// Package report builds debtor collection messages, billing summaries and
// WhatsApp share links.
package report

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/iwvelando/installment-ledger/pkg/constants"
	"github.com/iwvelando/installment-ledger/pkg/datetime"
	"github.com/iwvelando/installment-ledger/pkg/format"
	"github.com/iwvelando/installment-ledger/pkg/ledger"
	"github.com/iwvelando/installment-ledger/pkg/mathutil"
	"github.com/iwvelando/installment-ledger/pkg/query"
)

// ErrNoPhone is returned when a share link is requested for a debtor
// without a phone number.
var ErrNoPhone = errors.New("debtor has no phone number")

// BillingShareText is the message sent along with a billing summary.
const BillingShareText = "Olá! Segue o resumo das pendências. (A imagem foi baixada no seu dispositivo, por favor anexe-a aqui)."

// Message is a collection message for one debtor.
type Message struct {
	DebtorID ledger.ID `json:"debtorId"`
	Text     string    `json:"text"`
	Items    int       `json:"items"`
	Total    float64   `json:"total"`
	Link     string    `json:"link,omitempty"`
}

// DebtorMessage lists every unpaid or partially paid installment of the
// debtor's loans with its remaining balance. It returns false when nothing
// is owed.
func DebtorMessage(debtor ledger.Debtor, loans []ledger.Loan, now time.Time) (Message, bool) {
	var lines []string
	var total mathutil.Accumulator
	for _, loan := range loans {
		if loan.DebtorID != debtor.ID {
			continue
		}
		desc := loan.Desc
		if strings.TrimSpace(desc) == "" {
			desc = constants.DefaultLoanLabel
		}
		for _, inst := range loan.Installments {
			if inst.Status() == ledger.StatusPaid {
				continue
			}
			remaining := inst.Remaining()
			lines = append(lines, fmt.Sprintf("- Parcela %s (%s): %s",
				format.InstallmentLabel(inst.Number, loan.InstallmentsCount), desc, format.Currency(remaining)))
			total.Add(remaining)
		}
	}
	if len(lines) == 0 {
		return Message{DebtorID: debtor.ID}, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*COBRANÇA - %s*\n", datetime.FormatDisplay(datetime.Day(now)))
	fmt.Fprintf(&b, "Olá %s, segue resumo:\n\n", debtor.Name)
	b.WriteString(strings.Join(lines, "\n"))
	fmt.Fprintf(&b, "\n\n*TOTAL A PAGAR: %s*", format.Currency(total.Value()))

	return Message{
		DebtorID: debtor.ID,
		Text:     b.String(),
		Items:    len(lines),
		Total:    total.Value(),
	}, true
}

// Digits strips everything but digits from a phone number.
func Digits(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// WhatsAppLink builds a wa.me deep link that opens a chat with phone
// prefilled with text.
func WhatsAppLink(phone, text, countryCode string) (string, error) {
	digits := Digits(phone)
	if digits == "" {
		return "", ErrNoPhone
	}
	return shareLink(Digits(countryCode)+digits, text), nil
}

func shareLink(number, text string) string {
	// wa.me expects %20 rather than + for spaces
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return constants.WhatsAppBaseURL + number + "?text=" + escaped
}

// Billing is a printable summary of the currently filtered installments.
type Billing struct {
	GeneratedOn string      `json:"generatedOn"`
	Rows        []query.Row `json:"rows"`
	Total       float64     `json:"total"`
	ShareText   string      `json:"shareText"`
	ShareLink   string      `json:"shareLink"`
}

// BillingSummary totals the filtered rows and prepares the share link. The
// link targets the debtor's phone only when the filtered loans belong to a
// single debtor; otherwise the chat picker is left open.
func BillingSummary(result query.Result, debtors []ledger.Debtor, now time.Time) Billing {
	var total mathutil.Accumulator
	for _, row := range result.Rows {
		total.Add(row.Value)
	}

	debtorIDs := make(map[ledger.ID]bool)
	for _, loan := range result.Loans {
		debtorIDs[loan.DebtorID] = true
	}
	phone := ""
	if len(debtorIDs) == 1 {
		for _, d := range debtors {
			if debtorIDs[d.ID] {
				phone = Digits(d.Phone)
				break
			}
		}
	}

	rows := result.Rows
	if rows == nil {
		rows = []query.Row{}
	}
	return Billing{
		GeneratedOn: "Gerado em " + datetime.FormatDisplay(datetime.Day(now)),
		Rows:        rows,
		Total:       total.Value(),
		ShareText:   BillingShareText,
		ShareLink:   shareLink(phone, BillingShareText),
	}
}

// BillingLines renders the billing rows as plain text, one per line, in the
// order due date, "n/total - debtor", description and value.
func BillingLines(b Billing) []string {
	lines := make([]string, 0, len(b.Rows)+1)
	for _, row := range b.Rows {
		line := fmt.Sprintf("%s  %s - %s", datetime.FormatDisplay(row.DueDate),
			format.InstallmentLabel(row.Number, row.TotalCount), row.DebtorName)
		if row.Desc != "" {
			line += " (" + row.Desc + ")"
		}
		lines = append(lines, line+"  "+format.Currency(row.Value))
	}
	lines = append(lines, constants.TotalRowLabel+"  "+format.Currency(b.Total))
	return lines
}
