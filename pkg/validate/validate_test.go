package validate

import (
	"testing"

	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
)

type sampleInput struct {
	Quantity int    `validate:"required,gt=0"`
	Label    string `validate:"required"`
}

func TestStructPassesValidInput(t *testing.T) {
	if err := Struct(sampleInput{Quantity: 3, Label: "filtre"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStructReportsFieldFailures(t *testing.T) {
	err := Struct(sampleInput{Quantity: -1})
	if err == nil {
		t.Fatal("expected validation error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected coded validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if _, present := details["Label"]; !present {
		t.Fatalf("expected Label failure in details: %v", details)
	}
	if _, present := details["Quantity"]; !present {
		t.Fatalf("expected Quantity failure in details: %v", details)
	}
}
