package analysis

import (
	"testing"

	"github.com/shopspring/decimal"

	"stock-dashboard/models"
)

func TestFormatChange(t *testing.T) {
	tests := map[string]string{
		"12.5":   "+12.50",
		"0":      "+0.00",
		"-0.845": "-0.85",
		"3":      "+3.00",
	}
	for in, want := range tests {
		if got := FormatChange(dec(in)); got != want {
			t.Errorf("FormatChange(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatPctChange(t *testing.T) {
	if got := FormatPctChange(decimal.NullDecimal{}); got != NotAvailable {
		t.Errorf("undefined pct = %q, want n/a", got)
	}
	if got := FormatPctChange(decimal.NewNullDecimal(dec("-1.234"))); got != "-1.23%" {
		t.Errorf("pct = %q", got)
	}
}

func TestSummaryRows(t *testing.T) {
	series := models.NewQuoteSeries(models.Period1Month)
	series.Bars["TCS.NS"] = bars("3800", "3838")
	series.Bars["ZERO.NS"] = bars("0", "1")
	metrics := Derive(series)

	rows := SummaryRows([]string{"ZERO.NS", "MISSING.NS", "TCS.NS"}, metrics, map[string]string{"TCS.NS": "Tata Consultancy Services"})

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Symbol != "ZERO.NS" || rows[0].ChangePct != NotAvailable {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Price != "3838.00" || rows[1].Change != "+38.00" || rows[1].ChangePct != "+1.00%" {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if rows[1].CompanyName != "Tata Consultancy Services" {
		t.Errorf("CompanyName = %q", rows[1].CompanyName)
	}
}
