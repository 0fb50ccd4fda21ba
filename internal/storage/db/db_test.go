package db_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/tuanvumaihuynh/storefront/internal/storage/db"
)

func TestIsUniqueViolation(t *testing.T) {
	violation := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	assert.True(t, db.IsUniqueViolation(violation, ""))
	assert.True(t, db.IsUniqueViolation(violation, "users_email_key"))
	assert.False(t, db.IsUniqueViolation(violation, "products_pkey"))
	assert.False(t, db.IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, db.IsUniqueViolation(errors.New("boom"), ""))
}

func TestIsCheckViolation(t *testing.T) {
	violation := fmt.Errorf("update product: %w", &pgconn.PgError{Code: "23514", ConstraintName: "products_rating_check"})

	assert.True(t, db.IsCheckViolation(violation, ""))
	assert.True(t, db.IsCheckViolation(violation, "products_rating_check"))
	assert.False(t, db.IsCheckViolation(violation, "products_price_check"))
	assert.False(t, db.IsCheckViolation(&pgconn.PgError{Code: "23505"}, ""))
}

func TestIsNumericOutOfRange(t *testing.T) {
	assert.True(t, db.IsNumericOutOfRange(fmt.Errorf("insert product: %w", &pgconn.PgError{Code: "22003"})))
	assert.False(t, db.IsNumericOutOfRange(&pgconn.PgError{Code: "23514"}))
	assert.False(t, db.IsNumericOutOfRange(errors.New("boom")))
}
