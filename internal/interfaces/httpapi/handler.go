package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pricebot/internal/application/service"
	"pricebot/internal/application/usecase/command"
	"pricebot/internal/application/usecase/tracker"
	"pricebot/internal/domain"
)

// Feed is the live price stream as seen by health checks.
type Feed interface {
	Name() string
	Status() string
}

type Handler struct {
	cmds *command.Commands
	feed Feed
}

func NewHandler(cmds *command.Commands, feed Feed) *Handler {
	return &Handler{cmds: cmds, feed: feed}
}

func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{
		"status":   "ok",
		"sessions": len(h.cmds.Sessions()),
	}
	if h.feed != nil {
		resp["feed"] = gin.H{"name": h.feed.Name(), "state": h.feed.Status()}
	}
	c.JSON(http.StatusOK, resp)
}

type startRequest struct {
	MessageID string `json:"message_id"`
}

func (h *Handler) StartSession(c *gin.Context) {
	var req startRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	session := c.Param("id")
	seeded, err := h.cmds.Start(c.Request.Context(), session, req.MessageID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if seeded == nil {
		seeded = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "seeded": seeded})
}

func (h *Handler) StopSession(c *gin.Context) {
	if err := h.cmds.Stop(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetSession(c *gin.Context) {
	st, err := h.cmds.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

type addSymbolRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

func (h *Handler) AddSymbol(c *gin.Context) {
	var req addSymbolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sym, added, err := h.cmds.Add(c.Request.Context(), c.Param("id"), req.Symbol)
	if err != nil {
		h.fail(c, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"symbol": sym, "added": added})
}

func (h *Handler) RemoveSymbol(c *gin.Context) {
	sym, removed, err := h.cmds.Remove(c.Request.Context(), c.Param("id"), c.Param("symbol"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": sym + " is not tracked"})
		return
	}
	c.Status(http.StatusNoContent)
}

// MessageDeleted is the hook for a deleted chat message.
func (h *Handler) MessageDeleted(c *gin.Context) {
	stopped := h.cmds.MessageDeleted(c.Param("id"), c.Param("messageID"))
	c.JSON(http.StatusOK, gin.H{"stopped": stopped})
}

func (h *Handler) GetPrices(c *gin.Context) {
	raw := c.Query("symbols")
	if strings.TrimSpace(raw) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols is required"})
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	prices, err := h.cmds.Prices(c.Request.Context(), strings.Split(raw, ","), c.Query("quote"), force)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make(map[string]*string, len(prices))
	for sym, px := range prices {
		if px.Valid {
			s := px.Decimal.String()
			out[sym] = &s
		} else {
			out[sym] = nil
		}
	}
	c.JSON(http.StatusOK, gin.H{"prices": out})
}

func (h *Handler) Convert(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || amount.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a non-negative number"})
		return
	}
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to are required"})
		return
	}
	conv, err := h.cmds.Convert(c.Request.Context(), amount, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"amount": conv.Amount.String(),
		"from":   conv.From,
		"to":     conv.To,
		"result": conv.Result.String(),
	})
}

type point struct {
	Time  int64  `json:"t"`
	Close string `json:"close"`
}

func (h *Handler) Chart(c *gin.Context) {
	candles, err := h.cmds.Chart(c.Request.Context(), c.Param("symbol"), c.DefaultQuery("period", "7d"))
	if err != nil {
		h.fail(c, err)
		return
	}
	points := make([]point, 0, len(candles))
	for _, k := range candles {
		points = append(points, point{Time: k.OpenTime.UnixMilli(), Close: k.Close.String()})
	}
	c.JSON(http.StatusOK, gin.H{"symbol": domain.NormalizeSymbol(c.Param("symbol")), "points": points})
}

func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, tracker.ErrNoSession),
		errors.Is(err, command.ErrUnknownSymbol),
		errors.Is(err, domain.ErrDataUnavailable):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrZeroTargetPrice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrBatchFetch),
		errors.Is(err, domain.ErrTransientNetwork):
		return http.StatusBadGateway
	case errors.Is(err, tracker.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
