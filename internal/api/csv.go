package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"tradestream/internal/domain"
)

// csvDateLayout matches the legacy file feed, dd/mm/yyyy.
const csvDateLayout = "02/01/2006"

// todayPlaceholder in the createdDate column means the upload date.
const todayPlaceholder = "<today date>"

// parseTradesCSV reads the legacy candidate file: one candidate per line,
// columns tradeId,version,counterPartyId,bookId,maturityDate,createdDate,
// expired. A header row is skipped; any other bad row fails the whole
// file with its line number.
func parseTradesCSV(r io.Reader, today time.Time) ([]*domain.Trade, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var trades []*domain.Trade
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("row %d: %v", line, err)
		}
		if isBlankRow(record) {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "tradeId") {
			continue
		}

		t, err := parseTradeRow(record, today)
		if err == nil {
			err = t.Validate()
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %v", line, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func isBlankRow(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}

func parseTradeRow(record []string, today time.Time) (*domain.Trade, error) {
	if len(record) < 7 {
		return nil, fmt.Errorf("want 7 columns, got %d", len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	version, err := strconv.Atoi(record[1])
	if err != nil {
		return nil, fmt.Errorf("version %q: not a number", record[1])
	}

	t := &domain.Trade{
		TradeID:        record[0],
		Version:        version,
		CounterPartyID: record[2],
		BookID:         record[3],
	}

	if record[4] != "" {
		m, err := time.Parse(csvDateLayout, record[4])
		if err != nil {
			return nil, fmt.Errorf("maturityDate %q: want dd/mm/yyyy", record[4])
		}
		t.MaturityDate = domain.DatePtr(m)
	}

	switch {
	case record[5] == "" || strings.EqualFold(record[5], todayPlaceholder):
		t.CreatedDate = domain.ToDate(today)
	default:
		created, err := time.Parse(csvDateLayout, record[5])
		if err != nil {
			return nil, fmt.Errorf("createdDate %q: want dd/mm/yyyy", record[5])
		}
		t.CreatedDate = domain.ToDate(created)
	}

	status, err := parseExpired(record[6])
	if err != nil {
		return nil, err
	}
	t.ExpiredFlag = status

	return t, nil
}
