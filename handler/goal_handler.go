package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/goal_vault/model"
	"github.com/goal_vault/repository"
	"github.com/goal_vault/service"
)

type GoalHandler struct {
	svc    *service.GoalService
	oracle *service.PriceOracle
}

func NewGoalHandler(svc *service.GoalService, oracle *service.PriceOracle) *GoalHandler {
	return &GoalHandler{svc: svc, oracle: oracle}
}

type createGoalRequest struct {
	OwnerID       string `json:"ownerId" binding:"required"`
	WalletAddress string `json:"walletAddress" binding:"required"`
	GoalType      string `json:"goalType" binding:"required"`
	TargetValue   string `json:"targetValue" binding:"required"`
	Currency      string `json:"currency"`
	UnlockAt      *int64 `json:"unlockTimestamp"`
	Description   string `json:"description"`
	Legacy        bool   `json:"legacy"`
}

// POST /api/goals
func (h *GoalHandler) CreateGoal(c *gin.Context) {
	var req createGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := decimal.NewFromString(req.TargetValue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid targetValue"})
		return
	}
	var unlock *time.Time
	if req.UnlockAt != nil {
		t := time.Unix(*req.UnlockAt, 0)
		unlock = &t
	}

	goal, err := h.svc.CreateGoal(c, service.CreateGoalInput{
		OwnerID:         req.OwnerID,
		WalletAddress:   req.WalletAddress,
		GoalType:        model.GoalType(req.GoalType),
		TargetValue:     target,
		Currency:        model.Currency(req.Currency),
		UnlockTimestamp: unlock,
		Description:     req.Description,
		Legacy:          req.Legacy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, goal)
}

// GET /api/goals?ownerId=
func (h *GoalHandler) ListGoals(c *gin.Context) {
	ownerID := c.Query("ownerId")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ownerId is required"})
		return
	}
	goals, err := h.svc.ListGoals(c, ownerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

// GET /api/goals/:id
func (h *GoalHandler) GetGoal(c *gin.Context) {
	id, ok := goalID(c)
	if !ok {
		return
	}
	goal, err := h.svc.GetGoal(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

// GET /api/goals/:id/progress
func (h *GoalHandler) GetProgress(c *gin.Context) {
	id, ok := goalID(c)
	if !ok {
		return
	}
	goal, err := h.svc.GetGoal(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	quote := h.oracle.EthQuote(c)
	progress := service.GoalProgress(goal, quote)
	c.JSON(http.StatusOK, gin.H{
		"progress":        progress,
		"isLive":          quote.IsLive,
		"priceChange":     quote.ChangeIn(goal.Currency),
		"locallyUnlocked": service.AmountUnlocked(goal, time.Now()),
	})
}

// GET /api/goals/:id/transactions
func (h *GoalHandler) ListTransactions(c *gin.Context) {
	id, ok := goalID(c)
	if !ok {
		return
	}
	txs, err := h.svc.ListTransactions(c, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

type depositRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// POST /api/goals/:id/deposit
func (h *GoalHandler) Deposit(c *gin.Context) {
	id, ok := goalID(c)
	if !ok {
		return
	}
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	lt, err := h.svc.Deposit(c, id, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"transaction": lt})
}

type withdrawRequest struct {
	Early  bool   `json:"early"`
	Amount string `json:"amount"`
}

// POST /api/goals/:id/withdraw
func (h *GoalHandler) Withdraw(c *gin.Context) {
	id, ok := goalID(c)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount := decimal.Zero
	if req.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
	}
	plan, err := h.svc.Withdraw(c, id, req.Early, amount)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusAccepted
	if plan.Kind == service.PlanBlocked {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"plan": plan})
}

func goalID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid goal id"})
		return uuid.Nil, false
	}
	return id, true
}

func respondError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	var lErr *service.LedgerRejectedError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error()})
	case errors.Is(err, repository.ErrGoalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrOperationInFlight),
		errors.Is(err, repository.ErrAlreadyBound),
		errors.Is(err, repository.ErrWalletLinkedElsewhere):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrGoalNotBound), errors.Is(err, service.ErrGoalNotActive):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &lErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": lErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
