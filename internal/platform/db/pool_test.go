package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "mothers_mother_id_key"}
	if !IsUniqueViolation(dup) {
		t.Error("expected unique violation")
	}
	if !IsUniqueViolation(fmt.Errorf("insert mother: %w", dup)) {
		t.Error("expected wrapped unique violation to be detected")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23502"}) {
		t.Error("not-null violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Error("plain error is not a unique violation")
	}
}
