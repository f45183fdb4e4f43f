package validation

import (
	"errors"
	"strings"
	"testing"
)

type sampleInput struct {
	Name   string  `json:"name" validate:"required"`
	Phone  string  `json:"phone" validate:"omitempty,phone"`
	Kind   string  `json:"kind" validate:"required,oneof=dinheiro cartao"`
	CardID int64   `json:"cardId" validate:"required_if=Kind cartao"`
	Value  float64 `json:"value" validate:"gt=0"`
	Day    int     `json:"day" validate:"min=1,max=31"`
}

func TestStruct(t *testing.T) {
	valid := sampleInput{Name: "Ana", Phone: "(11) 99999-0000", Kind: "dinheiro", Value: 10, Day: 5}

	tests := []struct {
		name       string
		mutate     func(in *sampleInput)
		wantFields []string
	}{
		{"Valid input", func(in *sampleInput) {}, nil},
		{"Missing name", func(in *sampleInput) { in.Name = "" }, []string{"name"}},
		{"Letters in phone", func(in *sampleInput) { in.Phone = "call me" }, []string{"phone"}},
		{"Card kind without card", func(in *sampleInput) { in.Kind = "cartao" }, []string{"cardId"}},
		{"Unknown kind", func(in *sampleInput) { in.Kind = "pix" }, []string{"kind"}},
		{"Zero value and bad day", func(in *sampleInput) { in.Value = 0; in.Day = 32 }, []string{"value", "day"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := Struct(in)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Struct() unexpected error = %v", err)
				}
				return
			}
			var fieldErrs Errors
			if !errors.As(err, &fieldErrs) {
				t.Fatalf("Struct() error = %v, expected Errors", err)
			}
			if len(fieldErrs) != len(tt.wantFields) {
				t.Fatalf("Struct() returned %d field errors (%v), expected %d", len(fieldErrs), fieldErrs, len(tt.wantFields))
			}
			for i, field := range tt.wantFields {
				if fieldErrs[i].Field != field {
					t.Errorf("field error %d = %s, expected %s", i, fieldErrs[i].Field, field)
				}
			}
		})
	}
}

func TestErrorsMessage(t *testing.T) {
	err := Errors{{Field: "name", Message: "is required"}, {Field: "day", Message: "must be at most 31"}}
	if !strings.Contains(err.Error(), "name is required; day must be at most 31") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
