package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"xopt/internal/application/service"
	"xopt/internal/domain"
	"xopt/internal/infrastructure/exchange/binance"
)

const dateLayout = "2006-01-02"

// ===== status & market =====

func (s *Server) getStatus(c *gin.Context) {
	body := gin.H{
		"apiConfigured": s.cfg.Configured,
		"connected":     s.market.Snapshot().Connected(),
		"timestamp":     time.Now().UnixMilli(),
	}
	if s.stream != nil {
		body["stream"] = s.stream.Stats()
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) getSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.market.Snapshot().View())
}

func (s *Server) getChain(c *gin.Context) {
	snap := s.market.Snapshot()
	sel := snap.Selection()

	expiries := make([]string, 0)
	for _, d := range snap.Catalog().ExpiryDates(sel.Underlying) {
		expiries = append(expiries, d.Format(dateLayout))
	}

	var selected string
	if sel.Expiry != nil {
		selected = sel.Expiry.UTC().Format(dateLayout)
	}

	c.JSON(http.StatusOK, gin.H{
		"underlying": sel.Underlying,
		"expiry":     selected,
		"expiries":   expiries,
		"chain":      s.market.Chain(),
	})
}

func (s *Server) getUnderlyings(c *gin.Context) {
	us := s.market.Snapshot().Catalog().Underlyings()
	if us == nil {
		us = []string{}
	}
	c.JSON(http.StatusOK, us)
}

func (s *Server) getOpenInterest(c *gin.Context) {
	expiry, err := time.Parse(dateLayout, c.Query("expiry"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expiry must be YYYY-MM-DD"})
		return
	}
	oi, err := s.market.OpenInterest(c.Request.Context(), expiry)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, oi)
}

type selectRequest struct {
	Underlying string `json:"underlying"`
	Expiry     string `json:"expiry"`
	Symbol     string `json:"symbol"`
	Interval   string `json:"interval"`
}

func bindSelect(c *gin.Context) (selectRequest, bool) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return req, false
	}
	return req, true
}

func (s *Server) selectUnderlying(c *gin.Context) {
	req, ok := bindSelect(c)
	if !ok {
		return
	}
	if err := s.market.SelectUnderlying(c.Request.Context(), req.Underlying); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.market.Snapshot().Selection())
}

// selectExpiry 空字符串表示显示全部到期日
func (s *Server) selectExpiry(c *gin.Context) {
	req, ok := bindSelect(c)
	if !ok {
		return
	}
	var expiry *time.Time
	if v := strings.TrimSpace(req.Expiry); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expiry must be YYYY-MM-DD"})
			return
		}
		expiry = &d
	}
	s.market.SelectExpiry(expiry)
	c.JSON(http.StatusOK, s.market.Snapshot().Selection())
}

func (s *Server) selectSymbol(c *gin.Context) {
	req, ok := bindSelect(c)
	if !ok {
		return
	}
	if err := s.market.SelectSymbol(c.Request.Context(), req.Symbol); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.market.Snapshot().Selection())
}

func (s *Server) setInterval(c *gin.Context) {
	req, ok := bindSelect(c)
	if !ok {
		return
	}
	if err := s.market.SetChartInterval(c.Request.Context(), domain.KlineInterval(req.Interval)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.market.Snapshot().Selection())
}

// ===== account & orders =====

func (s *Server) requireCredentials(c *gin.Context) bool {
	if !s.cfg.Configured {
		writeError(c, service.ErrTradingDisabled)
		return false
	}
	return true
}

func (s *Server) getAccount(c *gin.Context) {
	if !s.requireCredentials(c) {
		return
	}
	acc, err := s.trading.Account(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (s *Server) getPositions(c *gin.Context) {
	if !s.requireCredentials(c) {
		return
	}
	ps, err := s.trading.Positions(c.Request.Context(), strings.ToUpper(c.Query("symbol")))
	if err != nil {
		writeError(c, err)
		return
	}
	if ps == nil {
		ps = []domain.Position{}
	}
	c.JSON(http.StatusOK, ps)
}

func (s *Server) getOpenOrders(c *gin.Context) {
	if !s.requireCredentials(c) {
		return
	}
	orders, err := s.trading.OpenOrders(c.Request.Context(), strings.ToUpper(c.Query("symbol")))
	if err != nil {
		writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) placeOrder(c *gin.Context) {
	if !s.requireCredentials(c) {
		return
	}
	var in service.PlaceOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	order, err := s.orders.Place(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) cancelOrder(c *gin.Context) {
	if !s.requireCredentials(c) {
		return
	}
	var req domain.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	order, err := s.orders.Cancel(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) cancelAllOrders(c *gin.Context) {
	if !s.requireCredentials(c) {
		return
	}
	if err := s.orders.CancelAll(c.Request.Context(), c.Query("symbol")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "success"})
}

// writeError maps service and exchange errors to a status and {"error": msg}.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	var apiErr *binance.APIError
	switch {
	case errors.Is(err, service.ErrTradingDisabled):
		status = http.StatusUnauthorized
		msg = "API credentials not configured"
	case errors.Is(err, service.ErrInvalidOrder),
		errors.Is(err, service.ErrUnknownSymbol),
		errors.Is(err, service.ErrInvalidInterval):
		status = http.StatusBadRequest
	case errors.Is(err, binance.ErrCredentialsMissing):
		status = http.StatusUnauthorized
	case errors.As(err, &apiErr):
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		} else {
			status = http.StatusBadGateway
		}
	}
	c.JSON(status, gin.H{"error": msg})
}
