package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"serotonyl.ru/settlement-engine/internal/common"
)

func TestMapError(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03"} {
		err := fmt.Errorf("lock balance: %w", &pgconn.PgError{Code: code, Message: "could not obtain lock"})
		if got := MapError(err); !errors.Is(got, common.ErrBalanceConflict) {
			t.Fatalf("code %s mapped to %v", code, got)
		}
	}

	unique := &pgconn.PgError{Code: "23505"}
	if got := MapError(unique); errors.Is(got, common.ErrBalanceConflict) {
		t.Fatalf("23505 must not be a conflict")
	}
	plain := errors.New("boom")
	if got := MapError(plain); got != plain {
		t.Fatalf("plain error changed: %v", got)
	}
}
