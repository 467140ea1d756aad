package client

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Period is the time-window selector the backend accepts on the
// transaction endpoints.
type Period string

const (
	PeriodWeekly      Period = "weekly"
	PeriodBiweekly    Period = "biweekly"
	PeriodLastMonth   Period = "last_month"
	PeriodLast3Months Period = "last_3_months"
)

// DefaultPeriod applies when no selector was chosen.
const DefaultPeriod = PeriodWeekly

// ParsePeriod validates a raw selector value.
func ParsePeriod(raw string) (Period, bool) {
	switch Period(raw) {
	case PeriodWeekly, PeriodBiweekly, PeriodLastMonth, PeriodLast3Months:
		return Period(raw), true
	}
	return "", false
}

// SpendingSlice is one category's share of the spending distribution.
type SpendingSlice struct {
	CategoryID uuid.UUID       `json:"category_id"`
	Category   string          `json:"category_name"`
	Amount     decimal.Decimal `json:"total_amount"`
	Percentage float64         `json:"percentage"`
	Color      string          `json:"color"`
}

func (s SpendingSlice) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Category, validation.Required),
		validation.Field(&s.Color, validation.Required),
		validation.Field(&s.Percentage, validation.Min(0.0), validation.Max(100.0)),
	)
}

// Transaction is a single ledger movement. Recurring detections reuse the
// same shape.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	Category    *string         `json:"category_name"`
	Merchant    *string         `json:"merchant_name"`
	Recurrent   bool            `json:"is_recurrent"`
}

func (t Transaction) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ID, validation.Required),
		validation.Field(&t.Description, validation.Required),
		validation.Field(&t.Date, validation.Required),
	)
}

// Summary is the headline financial figures for the dashboard cards.
type Summary struct {
	TotalBalance    decimal.Decimal `json:"total_balance"`
	TotalSavings    decimal.Decimal `json:"total_savings"`
	TotalDebt       decimal.Decimal `json:"total_debt"`
	MonthlySpending decimal.Decimal `json:"monthly_spending"`
	MonthlyIncome   decimal.Decimal `json:"monthly_income"`
	SpendingTrend   float64         `json:"spending_trend"`
	BalanceTrend    float64         `json:"balance_trend"`
}

// Statement is an uploaded bank statement on record.
type Statement struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	Period     string    `json:"period"`
	UploadedAt time.Time `json:"created_at"`
}

// UploadAck acknowledges a statement upload; parsing continues
// asynchronously and completion arrives over the live feed.
type UploadAck struct {
	Message     string `json:"message"`
	StatementID string `json:"statement_id"`
}
