package http

import "github.com/gin-gonic/gin"

func RegisterLendingRoutes(r *gin.Engine, handler *LendingHandler) {
	patrons := r.Group("/patrons")
	{
		patrons.POST("", handler.RegisterPatron)
		patrons.GET("/:id", handler.GetPatron)
		patrons.POST("/:id/holds", handler.PlaceOnHold)
		patrons.DELETE("/:id/holds/:bookId", handler.CancelHold)
		patrons.POST("/:id/checkouts", handler.CheckOut)
		patrons.POST("/:id/returns", handler.ReturnBook)
	}

	r.GET("/books/:id", handler.GetBook)
	r.GET("/analytics/daily", handler.DailyActivity)
}
