package router

import (
	"github.com/gin-gonic/gin"

	"github.com/goal_vault/handler"
)

func SetupRouter(goalHandler *handler.GoalHandler, walletHandler *handler.WalletHandler, priceHandler *handler.PriceHandler) *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	{
		goals := api.Group("/goals")
		{
			goals.POST("", goalHandler.CreateGoal)
			goals.GET("", goalHandler.ListGoals)
			goals.GET("/:id", goalHandler.GetGoal)
			goals.GET("/:id/progress", goalHandler.GetProgress)
			goals.GET("/:id/transactions", goalHandler.ListTransactions)
			goals.POST("/:id/deposit", goalHandler.Deposit)
			goals.POST("/:id/withdraw", goalHandler.Withdraw)
		}

		wallets := api.Group("/wallets")
		{
			wallets.POST("/link", walletHandler.Link)
			wallets.POST("/unlink", walletHandler.Unlink)
			wallets.POST("/primary", walletHandler.SetPrimary)
			wallets.GET("", walletHandler.List)
			wallets.GET("/:address/owner", walletHandler.Owner)
		}

		api.GET("/prices/:asset", priceHandler.GetQuote)
		api.GET("/market/sentiment", priceHandler.GetSentiment)
	}

	return r
}
