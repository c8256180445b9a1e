package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "backoffice/internal/errors"
)

// AssertAppError fails unless err is an AppError carrying code.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected error %s, got nil", code)
	case !errors.As(err, &appErr):
		t.Fatalf("expected error %s, got %T: %v", code, err, err)
	case appErr.Code != code:
		if appErr.Internal != nil {
			t.Errorf("expected error %s, got %s: %s (%v)", code, appErr.Code, appErr.Message, appErr.Internal)
			return
		}
		t.Errorf("expected error %s, got %s: %s", code, appErr.Code, appErr.Message)
	}
}

// AssertNoError stops the test on a non-nil err.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertDecimal compares got to the decimal literal want by value, so
// "10" and "10.000" are equal.
func AssertDecimal(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("%s = %s, want %s", field, got.String(), want)
	}
}
