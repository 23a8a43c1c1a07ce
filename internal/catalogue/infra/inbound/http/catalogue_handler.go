package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/lendinglab/internal/catalogue/application"
	"github.com/davicafu/lendinglab/internal/catalogue/domain"
	"github.com/davicafu/lendinglab/pkg/logger"
	"github.com/davicafu/lendinglab/pkg/utils"
)

// CatalogueHandler expone el alta y consulta de títulos y ejemplares.
type CatalogueHandler struct {
	service *application.CatalogueService
	log     *zap.Logger
}

func NewCatalogueHandler(service *application.CatalogueService, log *zap.Logger) *CatalogueHandler {
	return &CatalogueHandler{service: service, log: log}
}

// AddBook endpoint POST /catalogue/books
func (h *CatalogueHandler) AddBook(c *gin.Context) {
	var req struct {
		ISBN   string `json:"isbn" binding:"required"`
		Title  string `json:"title" binding:"required"`
		Author string `json:"author" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	book, err := h.service.AddBook(c.Request.Context(), req.ISBN, req.Title, req.Author)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, book)
}

// FindBook endpoint GET /catalogue/books/:isbn
func (h *CatalogueHandler) FindBook(c *gin.Context) {
	book, err := h.service.FindBook(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	instances, err := h.service.Instances(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, gin.H{"book": book, "instances": instances})
}

// AddBookInstance endpoint POST /catalogue/books/:isbn/instances
func (h *CatalogueHandler) AddBookInstance(c *gin.Context) {
	var req struct {
		BookType string `json:"book_type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	instance, err := h.service.AddBookInstance(c.Request.Context(), c.Param("isbn"), domain.BookType(req.BookType))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, instance)
}

func (h *CatalogueHandler) sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrBookNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, domain.ErrBookAlreadyExists):
		utils.SendConflict(c, err.Error())
	case errors.Is(err, domain.ErrInvalidISBN),
		errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrEmptyAuthor),
		errors.Is(err, domain.ErrInvalidBookType):
		utils.SendBadRequest(c, err.Error())
	default:
		logger.WithTrace(c.Request.Context(), h.log).Error("❌ Error inesperado en HTTP", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "internal error")
	}
}
