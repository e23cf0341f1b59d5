package parking

import (
	"errors"
	"testing"
)

func TestPlateNormalize(t *testing.T) {
	format := defaultPlateFormat()

	got, err := format.Normalize("  abc123 ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "ABC123" {
		t.Errorf("Expected ABC123, got %s", got)
	}

	for _, bad := range []string{"", "AB123", "ABC1234", "ABC-123", "123ABC"} {
		if _, err := format.Normalize(bad); !errors.Is(err, ErrInvalidPlate) {
			t.Errorf("Normalize(%q) expected ErrInvalidPlate, got %v", bad, err)
		}
	}
}

func TestCustomPlateFormat(t *testing.T) {
	format, err := NewPlateFormat(`^[A-Z]{2}\d{4}$`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := format.Normalize("ab1234"); err != nil {
		t.Errorf("Expected ab1234 to be accepted: %v", err)
	}
	if _, err := format.Normalize("ABC123"); err == nil {
		t.Error("Expected ABC123 to be rejected")
	}

	if _, err := NewPlateFormat("(["); err == nil {
		t.Error("Expected invalid pattern to fail")
	}
}
