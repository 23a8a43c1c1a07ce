package http

import "github.com/gin-gonic/gin"

func RegisterCatalogueRoutes(r *gin.Engine, handler *CatalogueHandler) {
	books := r.Group("/catalogue/books")
	{
		books.POST("", handler.AddBook)
		books.GET("/:isbn", handler.FindBook)
		books.POST("/:isbn/instances", handler.AddBookInstance)
	}
}
