// Package format renders ledger values in the pt-BR locale.
package format

import (
	"fmt"
	"math"
	"strings"
)

// Currency returns a BRL currency string with pt-BR separators (e.g., "-R$ 1.234,56").
func Currency(amount float64) string {
	formatted := formatPositiveCurrency(math.Abs(amount))
	if amount < 0 && formatted != "0,00" {
		return "-R$ " + formatted
	}
	return "R$ " + formatted
}

func formatPositiveCurrency(value float64) string {
	formatted := fmt.Sprintf("%.2f", value)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte('.')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "," + decPart
}

// InstallmentLabel renders "n/total".
func InstallmentLabel(number, total int) string {
	return fmt.Sprintf("%d/%d", number, total)
}
