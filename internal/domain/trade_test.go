package domain

import (
	"errors"
	"testing"
	"time"
)

func validTrade() *Trade {
	m := ToDate(time.Now().AddDate(0, 1, 0))
	return &Trade{
		TradeID:        "T1",
		Version:        1,
		CounterPartyID: "CP-1",
		BookID:         "B1",
		MaturityDate:   &m,
		CreatedDate:    Today(),
		ExpiredFlag:    StatusActive,
		RequestID:      "req-1",
	}
}

func TestTradeValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Trade)
		field   string
		wantErr bool
	}{
		{"valid", func(*Trade) {}, "", false},
		{"empty trade id", func(tr *Trade) { tr.TradeID = "" }, "tradeId", true},
		{"zero version", func(tr *Trade) { tr.Version = 0 }, "version", true},
		{"negative version", func(tr *Trade) { tr.Version = -3 }, "version", true},
		{"empty counterparty", func(tr *Trade) { tr.CounterPartyID = "" }, "counterPartyId", true},
		{"empty book", func(tr *Trade) { tr.BookID = "" }, "bookId", true},
		{"bad flag", func(tr *Trade) { tr.ExpiredFlag = "GONE" }, "expiredFlag", true},
		{"nil maturity is well formed", func(tr *Trade) { tr.MaturityDate = nil }, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTrade()
			tt.mutate(tr)
			err := tr.Validate()
			if tt.wantErr {
				var malformed *MalformedCandidateError
				if !errors.As(err, &malformed) {
					t.Fatalf("expected MalformedCandidateError, got %v", err)
				}
				if malformed.Field != tt.field {
					t.Errorf("field = %q, want %q", malformed.Field, tt.field)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTradeClone(t *testing.T) {
	tr := validTrade()
	c := tr.Clone()

	if c == tr {
		t.Fatal("clone returned same pointer")
	}
	if c.MaturityDate == tr.MaturityDate {
		t.Fatal("clone shares maturity date pointer")
	}
	*c.MaturityDate = c.MaturityDate.AddDate(1, 0, 0)
	if tr.MaturityDate.Equal(*c.MaturityDate) {
		t.Error("mutating clone affected original")
	}
}

func TestToDate(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 02:30 on the 10th in UTC+5 is still the 9th in UTC.
	in := time.Date(2026, 3, 10, 2, 30, 0, 0, loc)
	got := ToDate(in)
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ToDate(%v) = %v, want %v", in, got, want)
	}
}

func TestParseFormatDate(t *testing.T) {
	d, err := ParseDate("2026-08-24")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got := FormatDate(d); got != "2026-08-24" {
		t.Errorf("FormatDate = %q", got)
	}
	if _, err := ParseDate("24/08/2026"); err == nil {
		t.Error("expected error for wrong layout")
	}
}

func TestEventKeyString(t *testing.T) {
	k := EventKey{TradeID: "T9", Version: 4, RequestID: "r-7"}
	if got := k.String(); got != "T9/4/r-7" {
		t.Errorf("String() = %q", got)
	}
}
