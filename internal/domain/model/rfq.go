// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RFQ is a buyer's posted requirement. The matcher treats it as read-only.
type RFQ struct {
	ID          string          `json:"id"`
	BuyerID     string          `json:"buyer_id,omitempty"`
	Title       string          `json:"title"`
	Industry    string          `json:"industry"`
	Description string          `json:"description,omitempty"`
	Budget      decimal.Decimal `json:"budget"`
	Deadline    time.Time       `json:"deadline"`
}

// Supplier is a seller profile that can be proposed for RFQs.
type Supplier struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Industry    string    `json:"industry"`
	Rating      *float64  `json:"rating"` // 0-5, nil when unrated
	ReviewCount int       `json:"review_count"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
}

// RatingAbove reports whether the supplier has a rating strictly above threshold.
func (s Supplier) RatingAbove(threshold float64) bool {
	return s.Rating != nil && *s.Rating > threshold
}

// SameIndustry compares two industry labels. Comparison is exact unless
// foldCase is set, in which case surrounding space and case are ignored.
func SameIndustry(a, b string, foldCase bool) bool {
	if !foldCase {
		return a == b
	}
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
