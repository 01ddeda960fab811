// Package messaging carries candidates between the ingestion API and the
// processing worker over Kafka. Messages are keyed by tradeId so every
// version of a trade lands on the same partition and is consumed in
// delivery order.
package messaging

import (
	"encoding/json"
	"time"

	"tradestream/internal/domain"
)

// CandidateMessage is the JSON envelope for one candidate on the wire.
// Dates travel as yyyy-mm-dd strings; an empty maturityDate means absent.
type CandidateMessage struct {
	TradeID        string    `json:"tradeId"`
	Version        int       `json:"version"`
	CounterPartyID string    `json:"counterPartyId"`
	BookID         string    `json:"bookId"`
	MaturityDate   string    `json:"maturityDate,omitempty"`
	CreatedDate    time.Time `json:"createdDate"`
	ExpiredFlag    string    `json:"expiredFlag"`
	RequestID      string    `json:"requestId"`
}

// EncodeCandidate serializes a candidate for publishing.
func EncodeCandidate(t *domain.Trade) ([]byte, error) {
	msg := CandidateMessage{
		TradeID:        t.TradeID,
		Version:        t.Version,
		CounterPartyID: t.CounterPartyID,
		BookID:         t.BookID,
		CreatedDate:    t.CreatedDate,
		ExpiredFlag:    string(t.ExpiredFlag),
		RequestID:      t.RequestID,
	}
	if t.MaturityDate != nil {
		msg.MaturityDate = domain.FormatDate(*t.MaturityDate)
	}
	return json.Marshal(msg)
}

// DecodeCandidate parses a message payload back into a candidate.
// Undecodable payloads return a MalformedCandidateError: redelivery can
// never fix them, so consumers drop the message instead of retrying.
func DecodeCandidate(data []byte) (*domain.Trade, error) {
	var msg CandidateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &domain.MalformedCandidateError{Field: "payload", Detail: err.Error()}
	}

	t := &domain.Trade{
		TradeID:        msg.TradeID,
		Version:        msg.Version,
		CounterPartyID: msg.CounterPartyID,
		BookID:         msg.BookID,
		CreatedDate:    msg.CreatedDate,
		ExpiredFlag:    domain.ExpiryStatus(msg.ExpiredFlag),
		RequestID:      msg.RequestID,
	}
	if msg.ExpiredFlag == "" {
		t.ExpiredFlag = domain.StatusActive
	}
	if msg.MaturityDate != "" {
		d, err := domain.ParseDate(msg.MaturityDate)
		if err != nil {
			return nil, &domain.MalformedCandidateError{Field: "maturityDate", Detail: msg.MaturityDate}
		}
		t.MaturityDate = &d
	}
	return t, nil
}
