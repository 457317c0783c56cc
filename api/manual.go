package api

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Manual trading routes implement the §6.5 CLI's operator-intervention
// commands (`buy`, `sell`, `close`). These submit straight to
// the broker and carry no strategy bookkeeping of their own — there is no
// Strategy Runtime watching a manually-opened position for stop-loss or
// take-profit, since §1 scopes automated exits to strategy-owned trades.
// tp_pct/sl_pct are accepted and echoed back for the operator's own
// tracking, not enforced by the engine.

type manualOrderRequest struct {
	Ticker  string  `json:"ticker" binding:"required"`
	Dollars float64 `json:"dollars"`
	Shares  float64 `json:"shares"`
	TPPct   float64 `json:"tp_pct"`
	SLPct   float64 `json:"sl_pct"`
}

func (s *Server) handleBuy(c *gin.Context) {
	var req manualOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q, err := s.brokerC.GetQuote(req.Ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote lookup failed: " + err.Error()})
		return
	}

	shares := req.Shares
	if shares <= 0 && req.Dollars > 0 {
		shares = math.Floor(req.Dollars / q.Last)
	}
	if shares <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dollars or shares must resolve to at least 1 share"})
		return
	}

	order, err := s.brokerC.Buy(req.Ticker, shares, q.Last)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id": order.OrderID, "status": order.Status, "shares": shares, "limit_price": q.Last,
		"tp_pct": req.TPPct, "sl_pct": req.SLPct,
	})
}

func (s *Server) handleSell(c *gin.Context) {
	var req manualOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Shares <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "shares must be positive"})
		return
	}

	q, err := s.brokerC.GetQuote(req.Ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote lookup failed: " + err.Error()})
		return
	}

	order, err := s.brokerC.Sell(req.Ticker, req.Shares, q.Last)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": order.OrderID, "status": order.Status, "shares": req.Shares, "limit_price": q.Last})
}

func (s *Server) handleClose(c *gin.Context) {
	ticker := c.Param("ticker")

	pos, err := s.brokerC.GetPosition(ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if pos == nil || pos.Shares <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no open position for " + ticker})
		return
	}

	q, err := s.brokerC.GetQuote(ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote lookup failed: " + err.Error()})
		return
	}

	order, err := s.brokerC.Sell(ticker, pos.Shares, q.Last)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": order.OrderID, "status": order.Status, "shares": pos.Shares, "limit_price": q.Last})
}
