package fichas

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/archiletras/fichas-backend/internal/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.ErrorCode
	}{
		{"record not found", gorm.ErrRecordNotFound, domain.CodeNotFound},
		{"context canceled", context.Canceled, domain.CodeRetryable},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domain.CodeConflict},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, domain.CodeRetryable},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.CodeRetryable},
		{"duplicate key by message", errors.New("ERROR: duplicate key value violates unique constraint"), domain.CodeConflict},
		{"timeout by message", errors.New("dial tcp: i/o timeout"), domain.CodeRetryable},
		{"anything else", errors.New("column does not exist"), domain.CodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MapError("test.Op", tc.err)
			if !domain.IsCode(got, tc.want) {
				t.Fatalf("MapError(%v) = %v, want code %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestMapErrorPassesDomainErrorsThrough(t *testing.T) {
	orig := domain.NewError(domain.CodeConflict, "Lifecycle.Validate", "lost the race", nil)
	if got := MapError("test.Op", orig); got != orig {
		t.Fatalf("domain error was rewrapped: %v", got)
	}
}

func TestMapErrorNil(t *testing.T) {
	if got := MapError("test.Op", nil); got != nil {
		t.Fatalf("MapError(nil) = %v", got)
	}
}
