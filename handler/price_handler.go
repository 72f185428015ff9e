package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goal_vault/service"
)

type PriceHandler struct {
	oracle *service.PriceOracle
}

func NewPriceHandler(oracle *service.PriceOracle) *PriceHandler {
	return &PriceHandler{oracle: oracle}
}

// GET /api/prices/:asset
func (h *PriceHandler) GetQuote(c *gin.Context) {
	var quote service.Quote
	switch strings.ToLower(c.Param("asset")) {
	case "eth", "ethereum":
		quote = h.oracle.EthQuote(c)
	case "btc", "bitcoin":
		quote = h.oracle.BtcQuote(c)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown asset"})
		return
	}
	c.JSON(http.StatusOK, quote)
}

// GET /api/market/sentiment
func (h *PriceHandler) GetSentiment(c *gin.Context) {
	c.JSON(http.StatusOK, h.oracle.MarketSentiment(c))
}
