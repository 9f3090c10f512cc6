package model

import (
	"strings"
	"time"
)

// DefaultPreexistingWaitYears applies when a policy does not state its PED waiting period
const DefaultPreexistingWaitYears = 4

// ScoringFields holds the policy attributes the scorer reads.
// Nil means the value is absent, which is distinct from zero.
type ScoringFields struct {
	WaitingPeriodPreexistingYears *int     `json:"waiting_period_preexisting_years,omitempty" yaml:"waiting_period_preexisting_years,omitempty"`
	CoPayPercent                  *float64 `json:"co_pay_percent,omitempty" yaml:"co_pay_percent,omitempty"`
	RoomRentLimit                 *string  `json:"room_rent_limit,omitempty" yaml:"room_rent_limit,omitempty"`
	WaitingPeriodMaternityMonths  *int     `json:"waiting_period_maternity_months,omitempty" yaml:"waiting_period_maternity_months,omitempty"`
	CoversMaternity               *bool    `json:"covers_maternity,omitempty" yaml:"covers_maternity,omitempty"`
	CoversOPD                     *bool    `json:"covers_opd,omitempty" yaml:"covers_opd,omitempty"`
}

// PreexistingWaitYears returns the PED waiting period, falling back to the default
func (f ScoringFields) PreexistingWaitYears() int {
	if f.WaitingPeriodPreexistingYears == nil {
		return DefaultPreexistingWaitYears
	}
	return *f.WaitingPeriodPreexistingYears
}

// CoPay returns the co-pay percentage, zero when absent
func (f ScoringFields) CoPay() float64 {
	if f.CoPayPercent == nil {
		return 0
	}
	return *f.CoPayPercent
}

// RoomRent returns the room rent limit text, empty when absent
func (f ScoringFields) RoomRent() string {
	if f.RoomRentLimit == nil {
		return ""
	}
	return *f.RoomRentLimit
}

// CatalogPolicy is a shared product record. Read-only reference data.
type CatalogPolicy struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Insurer string `json:"insurer" yaml:"insurer"`
	ScoringFields `yaml:",inline"`
}

// UploadStatus tracks whether an uploaded document has been indexed
type UploadStatus string

const (
	UploadStatusPending UploadStatus = "pending"
	UploadStatusIndexed UploadStatus = "indexed"
	UploadStatusFailed  UploadStatus = "failed"
)

// UploadedPolicy is a user-owned policy document record
type UploadedPolicy struct {
	ID         string       `json:"id" yaml:"id"`
	UserLabel  string       `json:"user_label,omitempty" yaml:"user_label,omitempty"`
	Insurer    string       `json:"insurer,omitempty" yaml:"insurer,omitempty"`
	Status     UploadStatus `json:"status,omitempty" yaml:"status,omitempty"`
	UploadedAt time.Time    `json:"uploaded_at" yaml:"uploaded_at,omitempty"`
	ScoringFields `yaml:",inline"`
}

// IsIndexed reports whether the document's clauses are searchable
func (p UploadedPolicy) IsIndexed() bool {
	return p.Status == UploadStatusIndexed
}

// InsurerMatches reports whether two insurer names refer to the same insurer
// under the loose rule: case-insensitive substring in either direction.
// Empty names never match.
func InsurerMatches(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// InsurerEquals reports a case-insensitive exact insurer match
func InsurerEquals(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}

// IntPtr, FloatPtr, StringPtr and BoolPtr build optional scoring values.
func IntPtr(v int) *int { return &v }

func FloatPtr(v float64) *float64 { return &v }

func StringPtr(v string) *string { return &v }

func BoolPtr(v bool) *bool { return &v }
