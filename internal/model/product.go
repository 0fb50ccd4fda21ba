package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Validate implements the enum contract used by the request validator.
func (s ProductStatus) Validate() error {
	switch s {
	case ProductStatusActive, ProductStatusInactive:
		return nil
	default:
		return fmt.Errorf("unknown product status: %q", string(s))
	}
}

type Product struct {
	ID          uuid.UUID     `json:"_id"`
	Name        string        `json:"name"`
	Category    string        `json:"category"`
	Price       float64       `json:"price"`
	Quantity    int           `json:"quantity"`
	Description string        `json:"description"`
	Image       string        `json:"image"`
	Status      ProductStatus `json:"status"`
	Rating      float64       `json:"rating"`
	Ratings     []float64     `json:"ratings"`
	Version     int64         `json:"-"`
	CreatedBy   string        `json:"created_by"`
	UpdatedBy   string        `json:"updated_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// RoundPrice rounds v to the 2 decimals a price column keeps, using the same
// decimal text the value is stored as.
func RoundPrice(v float64) float64 {
	rounded, err := strconv.ParseFloat(FormatPrice(v), 64)
	if err != nil {
		return v
	}
	return rounded
}

// FormatPrice renders v with exactly 2 decimals.
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
