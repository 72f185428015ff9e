package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goal_vault/repository"
	"github.com/goal_vault/service"
)

type WalletHandler struct {
	svc *service.WalletService
}

func NewWalletHandler(svc *service.WalletService) *WalletHandler {
	return &WalletHandler{svc: svc}
}

type linkRequest struct {
	OwnerID string `json:"ownerId" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// POST /api/wallets/link
func (h *WalletHandler) Link(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	link, err := h.svc.Link(c, req.OwnerID, req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// POST /api/wallets/unlink
func (h *WalletHandler) Unlink(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.Unlink(c, req.OwnerID, req.Address); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unlinked"})
}

// POST /api/wallets/primary
func (h *WalletHandler) SetPrimary(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.SetPrimary(c, req.OwnerID, req.Address); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "primary"})
}

// GET /api/wallets?ownerId=
func (h *WalletHandler) List(c *gin.Context) {
	ownerID := c.Query("ownerId")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ownerId is required"})
		return
	}
	links, err := h.svc.ListWallets(c, ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallets": links})
}

// GET /api/wallets/:address/owner
func (h *WalletHandler) Owner(c *gin.Context) {
	ownerID, err := h.svc.FindOwner(c, c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	if ownerID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": repository.ErrWalletNotLinked.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ownerId": ownerID})
}
