package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradestream/internal/domain"
	"tradestream/internal/expiry"
	"tradestream/internal/storage"
)

// submitTrade accepts one candidate and hands it to the submitter under
// a fresh request id. 202 means accepted for processing, not accepted by
// validation; the outcome lands in the projection or the notifications.
func (s *Server) submitTrade(c *gin.Context) {
	var req TradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.errorJSON(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	requestID := uuid.NewString()
	t, err := req.toDomain(requestID, s.now())
	if err == nil {
		err = t.Validate()
	}
	if err != nil {
		s.errorJSON(c, http.StatusBadRequest, "invalid candidate", err)
		return
	}

	if !s.publishAll(c, requestID, []*domain.Trade{t}) {
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{RequestID: requestID, Submitted: 1})
}

// submitTrades accepts a batch; every candidate shares one request id so
// the whole submission can be traced together.
func (s *Server) submitTrades(c *gin.Context) {
	var reqs []TradeRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		s.errorJSON(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(reqs) == 0 {
		s.errorJSON(c, http.StatusBadRequest, "invalid request body", errors.New("empty batch"))
		return
	}

	requestID := uuid.NewString()
	trades := make([]*domain.Trade, 0, len(reqs))
	for i, req := range reqs {
		t, err := req.toDomain(requestID, s.now())
		if err == nil {
			err = t.Validate()
		}
		if err != nil {
			s.errorJSON(c, http.StatusBadRequest, "invalid candidate", fmt.Errorf("trade %d: %v", i+1, err))
			return
		}
		trades = append(trades, t)
	}

	if !s.publishAll(c, requestID, trades) {
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{RequestID: requestID, Submitted: len(trades)})
}

// uploadTradesFile ingests the legacy CSV feed. The whole file shares one
// request id; any bad row rejects the whole file.
func (s *Server) uploadTradesFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.errorJSON(c, http.StatusBadRequest, "invalid upload", err)
		return
	}
	f, err := header.Open()
	if err != nil {
		s.errorJSON(c, http.StatusBadRequest, "invalid upload", err)
		return
	}
	defer f.Close()

	trades, err := parseTradesCSV(f, s.now())
	if err != nil {
		s.errorJSON(c, http.StatusBadRequest, "invalid trade file", err)
		return
	}
	if len(trades) == 0 {
		s.errorJSON(c, http.StatusBadRequest, "invalid trade file", errors.New("no candidate rows"))
		return
	}

	requestID := uuid.NewString()
	for _, t := range trades {
		t.RequestID = requestID
	}
	if !s.publishAll(c, requestID, trades) {
		return
	}
	c.JSON(http.StatusAccepted, AcceptedResponse{RequestID: requestID, Submitted: len(trades)})
}

// publishAll submits candidates in order and reports whether all made it.
// The first failure answers 502 and stops the batch.
func (s *Server) publishAll(c *gin.Context, requestID string, trades []*domain.Trade) bool {
	for _, t := range trades {
		if err := s.submitter.Publish(c.Request.Context(), t); err != nil {
			s.logger.Error("candidate submission failed",
				zap.String("trade_id", t.TradeID),
				zap.Int("version", t.Version),
				zap.String("request_id", requestID),
				zap.Error(err))
			s.errorJSON(c, http.StatusBadGateway, "failed to submit candidate", err)
			return false
		}
	}
	return true
}

// getTrade returns every accepted version of a trade, version ascending.
func (s *Server) getTrade(c *gin.Context) {
	tradeID := c.Param("tradeId")
	trades, err := s.projections.GetByTradeID(c.Request.Context(), tradeID)
	if err != nil {
		s.errorJSON(c, http.StatusInternalServerError, "projection query failed", err)
		return
	}
	if len(trades) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade not found"})
		return
	}
	c.JSON(http.StatusOK, renderTrades(trades))
}

// getLatestTrade returns the highest accepted version of a trade.
func (s *Server) getLatestTrade(c *gin.Context) {
	tradeID := c.Param("tradeId")
	t, err := s.projections.Latest(c.Request.Context(), tradeID)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade not found"})
		return
	}
	if err != nil {
		s.errorJSON(c, http.StatusInternalServerError, "projection query failed", err)
		return
	}
	c.JSON(http.StatusOK, renderTrade(t))
}

// getNotifications returns rejection records for a trade id or a request
// id prefix, optionally narrowed to a recorded-at date range.
func (s *Server) getNotifications(c *gin.Context) {
	tradeID := c.Query("tradeId")
	requestID := c.Query("requestId")

	var (
		recs []*domain.ExceptionRecord
		err  error
	)
	switch {
	case requestID != "":
		recs, err = s.exceptions.GetByRequestID(c.Request.Context(), requestID)
	case tradeID != "":
		recs, err = s.exceptions.GetByTradeID(c.Request.Context(), tradeID)
	default:
		s.errorJSON(c, http.StatusBadRequest, "invalid query",
			errors.New("provide either 'requestId' or 'tradeId'"))
		return
	}
	if err != nil {
		s.errorJSON(c, http.StatusInternalServerError, "exception query failed", err)
		return
	}

	recs, err = filterRecordedRange(recs, c.Query("from"), c.Query("to"))
	if err != nil {
		s.errorJSON(c, http.StatusBadRequest, "invalid query", err)
		return
	}

	out := make([]NotificationResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, renderException(rec))
	}
	c.JSON(http.StatusOK, out)
}

// filterRecordedRange keeps records recorded within the inclusive
// [from, to] calendar dates. Empty bounds are open.
func filterRecordedRange(recs []*domain.ExceptionRecord, from, to string) ([]*domain.ExceptionRecord, error) {
	if from == "" && to == "" {
		return recs, nil
	}

	var lo, hi time.Time
	if from != "" {
		d, err := domain.ParseDate(from)
		if err != nil {
			return nil, fmt.Errorf("from %q: want yyyy-mm-dd", from)
		}
		lo = d
	}
	if to != "" {
		d, err := domain.ParseDate(to)
		if err != nil {
			return nil, fmt.Errorf("to %q: want yyyy-mm-dd", to)
		}
		hi = d.Add(24 * time.Hour)
	}

	out := make([]*domain.ExceptionRecord, 0, len(recs))
	for _, rec := range recs {
		if !lo.IsZero() && rec.RecordedAt.Before(lo) {
			continue
		}
		if !hi.IsZero() && !rec.RecordedAt.Before(hi) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// sweepExpiry runs one manual sweep pass.
func (s *Server) sweepExpiry(c *gin.Context) {
	expired, err := s.sweeper.SweepOnce(c.Request.Context(), expiry.TriggerManual)
	if err != nil {
		s.errorJSON(c, http.StatusInternalServerError, "expiry sweep failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

// streamOutcomes upgrades to a WebSocket fed by the outcome hub.
func (s *Server) streamOutcomes(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "outcome stream not configured"})
		return
	}
	if err := s.hub.ServeWS(c.Writer, c.Request); err != nil {
		s.logger.Warn("outcome stream upgrade failed", zap.Error(err))
	}
}
