// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/installment-ledger/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	if format != constants.OutputFormatPretty && format != constants.OutputFormatCSV {
		return fmt.Errorf("expected output format of %s or %s, got %s",
			constants.OutputFormatPretty, constants.OutputFormatCSV, format)
	}
	return nil
}

// ValidateExportFormat checks if the export format is one of the supported formats.
func ValidateExportFormat(format string) error {
	switch strings.ToLower(format) {
	case constants.ExportFormatCSV, constants.ExportFormatXLSX, constants.ExportFormatPDF:
		return nil
	}
	return fmt.Errorf("expected export format of %s, %s or %s, got %s",
		constants.ExportFormatCSV, constants.ExportFormatXLSX, constants.ExportFormatPDF, format)
}

// ValidateStorage checks that the storage backend is known and has the
// settings it needs.
func ValidateStorage(backend, path, redisAddr string) error {
	switch backend {
	case constants.StorageBackendFile, constants.StorageBackendSQLite:
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("storage backend %s requires a path", backend)
		}
	case constants.StorageBackendRedis:
		if strings.TrimSpace(redisAddr) == "" {
			return fmt.Errorf("storage backend %s requires redisAddr", backend)
		}
	default:
		return fmt.Errorf("expected storage backend of %s, %s or %s, got %s",
			constants.StorageBackendFile, constants.StorageBackendSQLite, constants.StorageBackendRedis, backend)
	}
	return nil
}
