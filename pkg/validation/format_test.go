package validation

import "testing"

func TestValidateOutputFormat(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		expectErr bool
	}{
		{
			name:      "Valid pretty format",
			format:    "pretty",
			expectErr: false,
		},
		{
			name:      "Valid csv format",
			format:    "csv",
			expectErr: false,
		},
		{
			name:      "Invalid format",
			format:    "json",
			expectErr: true,
		},
		{
			name:      "Empty format",
			format:    "",
			expectErr: true,
		},
		{
			name:      "Case sensitive - uppercase",
			format:    "PRETTY",
			expectErr: true,
		},
		{
			name:      "Leading/trailing spaces",
			format:    " pretty ",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format)

			if tt.expectErr {
				if err == nil {
					t.Errorf("ValidateOutputFormat(%s) expected error but got none", tt.format)
				}
			} else {
				if err != nil {
					t.Errorf("ValidateOutputFormat(%s) unexpected error = %v", tt.format, err)
				}
			}
		})
	}
}

func TestValidateExportFormat(t *testing.T) {
	tests := []struct {
		format    string
		expectErr bool
	}{
		{"csv", false},
		{"xlsx", false},
		{"pdf", false},
		{"PDF", false},
		{"xls", true},
		{"", true},
	}

	for _, tt := range tests {
		err := ValidateExportFormat(tt.format)
		if (err != nil) != tt.expectErr {
			t.Errorf("ValidateExportFormat(%q) error = %v, expectErr %v", tt.format, err, tt.expectErr)
		}
	}
}

func TestValidateStorage(t *testing.T) {
	tests := []struct {
		name      string
		backend   string
		path      string
		redisAddr string
		expectErr bool
	}{
		{"File with path", "file", "./data", "", false},
		{"File without path", "file", "", "", true},
		{"SQLite with path", "sqlite", "./ledger.db", "", false},
		{"Redis with address", "redis", "", "localhost:6379", false},
		{"Redis without address", "redis", "./data", "", true},
		{"Unknown backend", "localStorage", "./data", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStorage(tt.backend, tt.path, tt.redisAddr)
			if (err != nil) != tt.expectErr {
				t.Errorf("ValidateStorage() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}
