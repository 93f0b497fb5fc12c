package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/askari-labs/askari/internal/audit"
	"github.com/askari-labs/askari/internal/fraud"
	"github.com/askari-labs/askari/internal/logging"
)

// orderCheckRequest is the full admission check for an order submission.
type orderCheckRequest struct {
	OrderID           string `json:"orderId" binding:"required"`
	UserID            string `json:"userId" binding:"required"`
	Amount            int64  `json:"amount" binding:"required,gt=0"`
	PaymentMethod     string `json:"paymentMethod"`
	PaymentHash       string `json:"paymentHash"`
	Email             string `json:"email"`
	DeviceFingerprint string `json:"deviceFingerprint"`
	GeoLocation       string `json:"geoLocation"`
}

// orderCheckHandler runs the order admission pipeline: the rate limiter has
// already admitted the request (middleware); next the blacklist gate, then
// the fraud engine.
func (s *Server) orderCheckHandler(c *gin.Context) {
	var req orderCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()

	if result := s.gate.Check(ctx, ip, req.UserID, req.Email); result.Blacklisted {
		s.recordBlacklistedOrder(c, req.UserID, ip, result.Reason)
		c.JSON(http.StatusForbidden, gin.H{
			"status": fraud.StatusBlocked,
			"reason": "blacklisted",
			"match":  result.MatchType,
		})
		return
	}

	order := &fraud.Order{
		ID:            req.OrderID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		PaymentHash:   req.PaymentHash,
		PlacedAt:      time.Now(),
	}
	user := &fraud.UserContext{
		UserID:            req.UserID,
		IPAddress:         ip,
		DeviceFingerprint: req.DeviceFingerprint,
		GeoLocation:       req.GeoLocation,
	}

	analysis := s.engine.Detect(ctx, order, user)

	code := http.StatusOK
	if analysis.Status == fraud.StatusBlocked {
		code = http.StatusForbidden
	}
	c.JSON(code, gin.H{
		"riskScore":      analysis.RiskScore,
		"status":         analysis.Status,
		"riskFactors":    analysis.RiskFactors,
		"rules":          analysis.Rules,
		"recommendation": analysis.Recommendation,
	})
}

// fraudCheckHandler scores an order without the blacklist gate (scoring only).
func (s *Server) fraudCheckHandler(c *gin.Context) {
	var req orderCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	order := &fraud.Order{
		ID:            req.OrderID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		PaymentHash:   req.PaymentHash,
		PlacedAt:      time.Now(),
	}
	user := &fraud.UserContext{
		UserID:            req.UserID,
		IPAddress:         c.ClientIP(),
		DeviceFingerprint: req.DeviceFingerprint,
		GeoLocation:       req.GeoLocation,
	}

	analysis := s.engine.Detect(c.Request.Context(), order, user)
	c.JSON(http.StatusOK, gin.H{
		"riskScore":      analysis.RiskScore,
		"status":         analysis.Status,
		"riskFactors":    analysis.RiskFactors,
		"rules":          analysis.Rules,
		"recommendation": analysis.Recommendation,
	})
}

// blacklistCheckHandler exposes the gate directly.
func (s *Server) blacklistCheckHandler(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		ip = c.ClientIP()
	}
	result := s.gate.Check(c.Request.Context(), ip, c.Query("userId"), c.Query("email"))
	c.JSON(http.StatusOK, result)
}

func (s *Server) listSecurityEventsHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter := audit.EventFilter{
		IncidentType: c.Query("incidentType"),
		Severity:     audit.Severity(c.Query("severity")),
		UserID:       c.Query("userId"),
		Limit:        limit,
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "since must be RFC3339"})
			return
		}
		filter.Since = t
	}

	events, err := s.auditLog.ListEvents(c.Request.Context(), filter)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list security events", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (s *Server) listFraudAnalysesHandler(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	analyses, err := s.analyses.ListByUser(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list fraud analyses", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": analyses, "count": len(analyses)})
}

type reviewRequest struct {
	Reviewer string `json:"reviewer" binding:"required"`
	Status   string `json:"status" binding:"required,oneof=approved flagged manual_review blocked"`
	Notes    string `json:"notes"`
}

func (s *Server) reviewFraudAnalysisHandler(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	id := c.Param("id")
	if err := s.analyses.MarkReviewed(c.Request.Context(), id, req.Reviewer, fraud.Status(req.Status), req.Notes); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

func (s *Server) getViolationHandler(c *gin.Context) {
	ip := c.Query("ip")
	endpoint := c.Query("endpoint")
	if ip == "" || endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "ip and endpoint are required"})
		return
	}

	v, err := s.auditLog.GetViolation(c.Request.Context(), ip, endpoint)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to get violation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	if v == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, v)
}

// recordBlacklistedOrder emits the audit event for a gate rejection.
func (s *Server) recordBlacklistedOrder(c *gin.Context, userID, ip, reason string) {
	event := &audit.SecurityEvent{
		IncidentType:  audit.IncidentBlacklistedOrder,
		Severity:      audit.SeverityCritical,
		UserID:        userID,
		IPAddress:     ip,
		UserAgent:     c.Request.UserAgent(),
		RequestPath:   c.FullPath(),
		RequestMethod: c.Request.Method,
		IsBlocked:     true,
		Description:   "order rejected by blacklist: " + reason,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.auditLog.LogSecurityEvent(ctx, event); err != nil {
			s.logger.Error("failed to record security event", "incident", event.IncidentType, "error", err)
		}
	}()
}
