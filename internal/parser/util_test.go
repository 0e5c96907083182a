package parser

import (
	"testing"
	"time"

	"github.com/insightdelivered/finance-categorizer/internal/models"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1,234.56", "1234.56", false},
		{"$4.50", "4.5", false},
		{"-$2,397.36", "-2397.36", false},
		{"  18.00 ", "18", false},
		{"1 234.56", "1234.56", false},
		{"", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) expected error, got %s", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSplitDatePrefix(t *testing.T) {
	tests := []struct {
		line     string
		wantDate string
		wantRest string
		wantOK   bool
	}{
		{"Jan 15 STARBUCKS #123 5.75 1,204.50", "Jan 15", "STARBUCKS #123 5.75 1,204.50", true},
		{"Feb 3", "Feb 3", "", true},
		{"STARBUCKS #123", "", "", false},
		{"January 15 something", "", "", false},
	}
	for _, tt := range tests {
		date, rest, ok := SplitDatePrefix(tt.line)
		if ok != tt.wantOK || date != tt.wantDate || rest != tt.wantRest {
			t.Errorf("SplitDatePrefix(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.line, date, rest, ok, tt.wantDate, tt.wantRest, tt.wantOK)
		}
	}
}

func TestMonthDayDate(t *testing.T) {
	got, err := monthDayDate("Jan 15", 2025)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := monthDayDate("Foo 15", 2025); err == nil {
		t.Error("expected error for unknown month")
	}
	if _, err := monthDayDate("Jan 32", 2025); err == nil {
		t.Error("expected error for day out of range")
	}
}

func TestRolloverYear(t *testing.T) {
	tests := []struct {
		txnMonth, stmtMonth string
		stmtYear, want      int
	}{
		{"dec", "jan", 2025, 2024},
		{"jan", "jan", 2025, 2025},
		{"dec", "dec", 2024, 2024},
		{"nov", "jan", 2025, 2025}, // only December rolls back
	}
	for _, tt := range tests {
		if got := rolloverYear(tt.txnMonth, tt.stmtMonth, tt.stmtYear); got != tt.want {
			t.Errorf("rolloverYear(%q, %q, %d) = %d, want %d",
				tt.txnMonth, tt.stmtMonth, tt.stmtYear, got, tt.want)
		}
	}
}

func TestFlattenText(t *testing.T) {
	got := FlattenText("TD Canada Trust\n STATEMENT ", "Page 2")
	want := "tdcanadatruststatementpage2"
	if got != want {
		t.Errorf("FlattenText = %q, want %q", got, want)
	}
}

func TestClassifyTransactionType(t *testing.T) {
	tests := []struct {
		details string
		want    models.TransactionType
	}{
		{"RETAIL PURCHASE 0042 STORE", models.Debit},
		{"E-TRANSFER sent to landlord", models.Debit},
		{"MONTHLY SERVICE CHARGE", models.Debit},
		{"PETRO-CANADA 9981", models.Debit},
		{"CASH WITHDRAWAL ATM", models.Debit},
		{"REWARDS REDEMPTION", models.Credit},
		{"PURCHASE REFUND - STORE", models.Credit}, // credit list wins over debit list
		{"E-TRANSFER RECLAIM", models.Credit},      // specific e-transfer variant stays Credit
		{"E-TRANSFER PAYDIRECT DEPOSIT", models.Credit},
		{"PAYROLL DEPOSIT ACME LTD", models.Credit}, // no keyword: defaults Credit
		{"", models.Credit},
	}
	for _, tt := range tests {
		if got := ClassifyTransactionType(tt.details); got != tt.want {
			t.Errorf("ClassifyTransactionType(%q) = %s, want %s", tt.details, got, tt.want)
		}
	}
}

func TestMonthYearLabel(t *testing.T) {
	pages := []string{"TD CANADA TRUST\nSTATEMENT DATE: January 5, 2025\n"}
	if got := MonthYearLabel(pages, nil); got != "Jan_2025" {
		t.Errorf("MonthYearLabel = %q, want Jan_2025", got)
	}

	txns := []models.TransactionRecord{
		{Date: time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)},
	}
	if got := MonthYearLabel([]string{"no date line"}, txns); got != "Mar_2024" {
		t.Errorf("MonthYearLabel fallback = %q, want Mar_2024", got)
	}

	if got := MonthYearLabel([]string{""}, nil); got != "" {
		t.Errorf("MonthYearLabel empty = %q, want empty", got)
	}
}
