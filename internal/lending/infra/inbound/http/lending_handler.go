package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/davicafu/lendinglab/internal/lending/application"
	"github.com/davicafu/lendinglab/internal/lending/domain"
	sharedDomain "github.com/davicafu/lendinglab/internal/shared/domain"
	"github.com/davicafu/lendinglab/pkg/logger"
	"github.com/davicafu/lendinglab/pkg/utils"
)

// LendingHandler encapsula los endpoints HTTP de lectores y libros.
type LendingHandler struct {
	service   *application.LendingService
	analytics domain.LendingAnalyticsRepository
	log       *zap.Logger
}

// NewLendingHandler crea el handler. analytics puede ser nil si no hay ClickHouse.
func NewLendingHandler(service *application.LendingService, analytics domain.LendingAnalyticsRepository, log *zap.Logger) *LendingHandler {
	return &LendingHandler{service: service, analytics: analytics, log: log}
}

// ---------------- DTOs ----------------

type patronResponse struct {
	ID               string                                     `json:"id"`
	Type             domain.PatronType                          `json:"type"`
	Holds            []domain.Hold                              `json:"holds"`
	OverdueCheckouts map[domain.LibraryBranchID][]domain.BookID `json:"overdue_checkouts"`
	Version          sharedDomain.Version                       `json:"version"`
}

func toPatronResponse(p domain.Patron) patronResponse {
	snapshot := p.Snapshot()
	return patronResponse{
		ID:               p.ID().String(),
		Type:             snapshot.Info.PatronType,
		Holds:            snapshot.Holds,
		OverdueCheckouts: snapshot.OverdueCheckouts,
		Version:          p.Version(),
	}
}

type bookResponse struct {
	domain.Book
	ID      string               `json:"id"`
	Version sharedDomain.Version `json:"version"`
}

func toBookResponse(b domain.Book) bookResponse {
	return bookResponse{Book: b, ID: b.ID().String(), Version: b.Version()}
}

// ---------------- Handlers ----------------

// RegisterPatron endpoint POST /patrons
func (h *LendingHandler) RegisterPatron(c *gin.Context) {
	var req struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	patron, err := h.service.RegisterPatron(c.Request.Context(), domain.PatronType(req.Type))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, toPatronResponse(patron))
}

// GetPatron endpoint GET /patrons/:id
func (h *LendingHandler) GetPatron(c *gin.Context) {
	patronID, ok := patronParam(c)
	if !ok {
		return
	}

	patron, err := h.service.GetPatron(c.Request.Context(), patronID)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, toPatronResponse(patron))
}

// PlaceOnHold endpoint POST /patrons/:id/holds
func (h *LendingHandler) PlaceOnHold(c *gin.Context) {
	patronID, ok := patronParam(c)
	if !ok {
		return
	}
	var req struct {
		BookID string `json:"book_id" binding:"required"`
		Days   *int   `json:"days,omitempty"` // sin days = reserva abierta
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	bookID, err := domain.ParseBookID(req.BookID)
	if err != nil {
		utils.SendBadRequest(c, "invalid book id")
		return
	}

	events, err := h.service.PlaceOnHold(c.Request.Context(), application.PlaceOnHoldCommand{
		PatronID: patronID,
		BookID:   bookID,
		Days:     req.Days,
	})
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, events.PlacedOnHold)
}

// CancelHold endpoint DELETE /patrons/:id/holds/:bookId
func (h *LendingHandler) CancelHold(c *gin.Context) {
	patronID, ok := patronParam(c)
	if !ok {
		return
	}
	bookID, err := domain.ParseBookID(c.Param("bookId"))
	if err != nil {
		utils.SendBadRequest(c, "invalid book id")
		return
	}

	canceled, err := h.service.CancelHold(c.Request.Context(), patronID, bookID)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, canceled)
}

// CheckOut endpoint POST /patrons/:id/checkouts
func (h *LendingHandler) CheckOut(c *gin.Context) {
	patronID, ok := patronParam(c)
	if !ok {
		return
	}
	var req struct {
		BookID string `json:"book_id" binding:"required"`
		Days   int    `json:"days" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	bookID, err := domain.ParseBookID(req.BookID)
	if err != nil {
		utils.SendBadRequest(c, "invalid book id")
		return
	}

	checkedOut, err := h.service.CheckOut(c.Request.Context(), application.CheckOutCommand{
		PatronID: patronID,
		BookID:   bookID,
		Days:     req.Days,
	})
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusCreated, checkedOut)
}

// ReturnBook endpoint POST /patrons/:id/returns
func (h *LendingHandler) ReturnBook(c *gin.Context) {
	patronID, ok := patronParam(c)
	if !ok {
		return
	}
	var req struct {
		BookID string `json:"book_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}
	bookID, err := domain.ParseBookID(req.BookID)
	if err != nil {
		utils.SendBadRequest(c, "invalid book id")
		return
	}

	returned, err := h.service.ReturnBook(c.Request.Context(), patronID, bookID)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, returned)
}

// GetBook endpoint GET /books/:id
func (h *LendingHandler) GetBook(c *gin.Context) {
	bookID, err := domain.ParseBookID(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid book id")
		return
	}

	book, err := h.service.GetBook(c.Request.Context(), bookID)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, toBookResponse(book))
}

// DailyActivity endpoint GET /analytics/daily?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *LendingHandler) DailyActivity(c *gin.Context) {
	if h.analytics == nil {
		utils.SendNotFound(c, "analytics not configured")
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)
	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			utils.SendBadRequest(c, "invalid from date, use YYYY-MM-DD")
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			utils.SendBadRequest(c, "invalid to date, use YYYY-MM-DD")
			return
		}
	}

	activity, err := h.analytics.GetDailyActivity(c.Request.Context(), from, to)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, activity)
}

func patronParam(c *gin.Context) (domain.PatronID, bool) {
	id, err := domain.ParsePatronID(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid patron id")
		return domain.PatronID{}, false
	}
	return id, true
}

// sendError traduce errores de aplicación a códigos HTTP.
func (h *LendingHandler) sendError(c *gin.Context, err error) {
	var rejection *application.RejectionError
	switch {
	case errors.As(err, &rejection):
		utils.SendUnprocessable(c, "command rejected", rejection.Reason)
	case errors.Is(err, domain.ErrPatronNotFound), errors.Is(err, domain.ErrBookNotFound):
		utils.SendNotFound(c, err.Error())
	case errors.Is(err, sharedDomain.ErrConcurrencyConflict),
		errors.Is(err, domain.ErrBookNotAvailable),
		errors.Is(err, domain.ErrBookNotOnHold),
		errors.Is(err, domain.ErrBookNotCheckedOut):
		utils.SendConflict(c, err.Error())
	case errors.Is(err, domain.ErrInvalidPatronType),
		errors.Is(err, domain.ErrInvalidHoldDuration),
		errors.Is(err, domain.ErrInvalidCheckoutDuration):
		utils.SendBadRequest(c, err.Error())
	default:
		logger.WithTrace(c.Request.Context(), h.log).Error("❌ Error inesperado en HTTP", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "internal error")
	}
}
