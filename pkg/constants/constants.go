// Package constants provides shared constants for the installment-ledger application.
package constants

import "time"

// DateLayout is the format used for stored dates and for date parameters.
const DateLayout = "2006-01-02"

// DisplayDateLayout is the pt-BR day/month/year display format.
const DisplayDateLayout = "02/01/2006"

// Ledger constants
const (
	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// ClosingWindowDays is how close to the card due day a purchase may be
	// before it rolls to the next billing cycle.
	ClosingWindowDays = 10

	// MaxDueDay is the largest accepted card due day.
	MaxDueDay = 31
)

// Display placeholders
const (
	// RemovedDebtorName is shown for loans whose debtor no longer exists.
	RemovedDebtorName = "Removido"

	// NoCardName is shown for cash loans and loans whose card was deleted.
	NoCardName = "-"

	// UnknownDebtorName is used when a legacy record has no creditor name.
	UnknownDebtorName = "Desconhecido"

	// DefaultLoanLabel is used in messages for loans without a description.
	DefaultLoanLabel = "Empréstimo"

	// TotalRowLabel labels the trailing row of every export.
	TotalRowLabel = "TOTAL"

	// FilterAll is the string filter value meaning no constraint.
	FilterAll = "all"
)

// Storage keys, shared with the browser dashboard's localStorage layout.
const (
	DebtorsKey     = "painel_devedores_db"
	LoansKey       = "painel_emprestimos_v3_db"
	CardsKey       = "painel_cartoes_db"
	LegacyLoansKey = "painel_emprestimos_db"
)

// Storage backends
const (
	StorageBackendFile   = "file"
	StorageBackendSQLite = "sqlite"
	StorageBackendRedis  = "redis"
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"
)

// Export format constants
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
	ExportFormatPDF  = "pdf"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// DefaultDataPath is where the file backend keeps its snapshots
	DefaultDataPath = "./data"
)

// Messaging defaults
const (
	// DefaultCountryCode is prefixed to debtor phone numbers in deep links.
	DefaultCountryCode = "55"

	// WhatsAppBaseURL is the deep link base for outbound messages.
	WhatsAppBaseURL = "https://wa.me/"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for backups (1 MB)
	DefaultMaxUploadSizeBytes int64 = 1024 * 1024

	// DefaultShutdownTimeout bounds graceful shutdown of the HTTP server
	DefaultShutdownTimeout = 10 * time.Second
)
