package api

import (
	"fmt"
	"strings"
	"time"

	"tradestream/internal/domain"
)

// TradeRequest is one inbound candidate in a JSON body. Dates travel as
// yyyy-mm-dd strings; expired carries the legacy Y/N flag.
type TradeRequest struct {
	TradeID        string `json:"tradeId"`
	Version        int    `json:"version"`
	CounterPartyID string `json:"counterPartyId"`
	BookID         string `json:"bookId"`
	MaturityDate   string `json:"maturityDate"`
	CreatedDate    string `json:"createdDate"`
	Expired        string `json:"expired"`
}

// toDomain builds the candidate, stamping the request id and defaulting
// an absent createdDate to today.
func (r *TradeRequest) toDomain(requestID string, today time.Time) (*domain.Trade, error) {
	t := &domain.Trade{
		TradeID:        r.TradeID,
		Version:        r.Version,
		CounterPartyID: r.CounterPartyID,
		BookID:         r.BookID,
		RequestID:      requestID,
	}

	if r.MaturityDate != "" {
		d, err := domain.ParseDate(r.MaturityDate)
		if err != nil {
			return nil, fmt.Errorf("maturityDate %q: want yyyy-mm-dd", r.MaturityDate)
		}
		t.MaturityDate = &d
	}

	if r.CreatedDate == "" {
		t.CreatedDate = domain.ToDate(today)
	} else {
		d, err := domain.ParseDate(r.CreatedDate)
		if err != nil {
			return nil, fmt.Errorf("createdDate %q: want yyyy-mm-dd", r.CreatedDate)
		}
		t.CreatedDate = d
	}

	status, err := parseExpired(r.Expired)
	if err != nil {
		return nil, err
	}
	t.ExpiredFlag = status

	return t, nil
}

// parseExpired maps the wire flag to an expiry status. Empty means ACTIVE.
func parseExpired(s string) (domain.ExpiryStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "N":
		return domain.StatusActive, nil
	case "Y":
		return domain.StatusExpired, nil
	default:
		return "", fmt.Errorf("expired %q: want Y or N", s)
	}
}

// formatExpired renders an expiry status as the wire flag.
func formatExpired(s domain.ExpiryStatus) string {
	if s == domain.StatusExpired {
		return "Y"
	}
	return "N"
}

// TradeResponse is one projected trade version.
type TradeResponse struct {
	TradeID        string `json:"tradeId"`
	Version        int    `json:"version"`
	CounterPartyID string `json:"counterPartyId"`
	BookID         string `json:"bookId"`
	MaturityDate   string `json:"maturityDate,omitempty"`
	CreatedDate    string `json:"createdDate"`
	Expired        string `json:"expired"`
}

func renderTrade(t *domain.Trade) TradeResponse {
	resp := TradeResponse{
		TradeID:        t.TradeID,
		Version:        t.Version,
		CounterPartyID: t.CounterPartyID,
		BookID:         t.BookID,
		CreatedDate:    domain.FormatDate(t.CreatedDate),
		Expired:        formatExpired(t.ExpiredFlag),
	}
	if t.MaturityDate != nil {
		resp.MaturityDate = domain.FormatDate(*t.MaturityDate)
	}
	return resp
}

func renderTrades(trades []*domain.Trade) []TradeResponse {
	out := make([]TradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, renderTrade(t))
	}
	return out
}

// NotificationResponse is one rejection record.
type NotificationResponse struct {
	ID             int64     `json:"id"`
	TradeID        string    `json:"tradeId"`
	Version        int       `json:"version"`
	CounterPartyID string    `json:"counterPartyId"`
	BookID         string    `json:"bookId"`
	MaturityDate   string    `json:"maturityDate,omitempty"`
	CreatedDate    string    `json:"createdDate"`
	Expired        string    `json:"expired"`
	RequestID      string    `json:"requestId"`
	Reason         string    `json:"reason"`
	RecordedAt     time.Time `json:"recordedAt"`
}

func renderException(rec *domain.ExceptionRecord) NotificationResponse {
	resp := NotificationResponse{
		ID:             rec.ID,
		TradeID:        rec.TradeID,
		Version:        rec.Version,
		CounterPartyID: rec.CounterPartyID,
		BookID:         rec.BookID,
		CreatedDate:    domain.FormatDate(rec.CreatedDate),
		Expired:        formatExpired(rec.ExpiredFlag),
		RequestID:      rec.RequestID,
		Reason:         rec.Reason,
		RecordedAt:     rec.RecordedAt,
	}
	if rec.MaturityDate != nil {
		resp.MaturityDate = domain.FormatDate(*rec.MaturityDate)
	}
	return resp
}

// AcceptedResponse acknowledges an ingestion request.
type AcceptedResponse struct {
	RequestID string `json:"requestId"`
	Submitted int    `json:"submitted"`
}
