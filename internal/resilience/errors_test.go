package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	err := errors.New("invalid input: missing field")
	if IsTransient(err) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_ConnectionReset(t *testing.T) {
	err := fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
	if !IsTransient(err) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsTransient_ConnectionRefused(t *testing.T) {
	err := fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)
	if !IsTransient(err) {
		t.Error("ECONNREFUSED should be transient")
	}
}

func TestIsTransient_PgError(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"08006", true}, // connection_failure
		{"40001", true},
		{"40P01", true},
		{"57P03", true},
		{"23505", false}, // unique_violation
		{"42P01", false}, // undefined_table
	}
	for _, tt := range tests {
		err := fmt.Errorf("exec: %w", &pgconn.PgError{Code: tt.code})
		if got := IsTransient(err); got != tt.want {
			t.Errorf("IsTransient(%s) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestIsTransient_MessagePatterns(t *testing.T) {
	for _, msg := range []string{
		"read: connection reset by peer",
		"write: Broken Pipe",
		"dial tcp 10.0.0.1:5432: i/o timeout",
		"conn closed",
	} {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("%q should be transient", msg)
		}
	}
}
