package core

import (
	"errors"
	"strings"
	"time"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Subscription is one immutable catalog record.
	Subscription struct {
		ID          int
		Name        string
		Category    string
		YearlyCost  Money
		NextPayment Date // display only
		Logo        string
	}
)

var (
	ErrInvalidID      = errors.New("invalid subscription id")
	ErrEmptyName      = errors.New("empty subscription name")
	ErrEmptyCategory  = errors.New("empty category")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = errors.New("negative amount")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// ISO returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (s Subscription) Validate() error {
	if s.ID <= 0 {
		return ErrInvalidID
	}
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(s.Category) == "" {
		return ErrEmptyCategory
	}
	return s.YearlyCost.Validate()
}
