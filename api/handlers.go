package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// handleStatus reports every loaded strategy's live counts (§4.2
// get-status).
func (s *Server) handleStatus(c *gin.Context) {
	statuses := s.eng.Status()
	out := make([]gin.H, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, gin.H{
			"id":             st.Config.ID,
			"name":           st.Config.Name,
			"priority":       st.Config.Priority,
			"enabled":        st.Config.Enabled,
			"pending_count":  st.PendingCount,
			"active_count":   st.ActiveCount,
			"active_tickers": st.ActiveTickers,
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": out, "paper": s.brokerC.IsPaper(), "broker": s.brokerC.Name()})
}

func (s *Server) handleAccount(c *gin.Context) {
	info, err := s.eng.GetAccountInfo()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"equity":       info.Equity,
		"cash":         info.Cash,
		"buying_power": info.BuyingPower,
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	positions, err := s.brokerC.GetPositions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *Server) handleOpenOrders(c *gin.Context) {
	orders, err := s.brokerC.GetOpenOrders()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *Server) handleTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	trades, err := s.eng.ListCompletedTrades(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleQuote(c *gin.Context) {
	ticker := c.Param("ticker")
	q, err := s.brokerC.GetQuote(ticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) handleEnableStrategy(c *gin.Context) {
	if err := s.eng.EnableStrategy(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "enabled"})
}

func (s *Server) handleDisableStrategy(c *gin.Context) {
	if err := s.eng.DisableStrategy(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

func (s *Server) handleSetPriority(c *gin.Context) {
	var req struct {
		Priority int `json:"priority" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.eng.SetPriority(c.Param("id"), req.Priority); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reprioritized"})
}

func (s *Server) handleCloseAll(c *gin.Context) {
	s.eng.ExitAll()
	c.JSON(http.StatusOK, gin.H{"status": "exit submitted for all active trades"})
}

func (s *Server) handleCancelAll(c *gin.Context) {
	n, err := s.eng.CancelAllOrders()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"canceled": n})
}
