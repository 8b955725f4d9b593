// Bio HTTP handlers.
//
// This file exposes REST endpoints for bio resources and hosts the shared
// handler wiring:
//   - POST /bios  (create)
//   - GET  /bios  (list, paginated)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate service errors into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
	"github.com/biolinkhq/go-biolink-backend/internal/services"
	"github.com/biolinkhq/go-biolink-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// BioService defines bio lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type BioService interface {
	// Create claims a slug for userID and returns the bio resource.
	Create(ctx context.Context, userID, slug string) (*domain.Bio, error)
	// ListPage returns a page of the user's bios and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Bio, int64, error)
}

// PollService defines poll lifecycle and public voting operations.
type PollService interface {
	Create(ctx context.Context, userID, bioID string, in services.PollInput) (*domain.Poll, error)
	ListPage(ctx context.Context, userID, bioID string, page, pageSize int) ([]domain.Poll, int64, error)
	Get(ctx context.Context, userID, pollID string) (*domain.Poll, error)
	Update(ctx context.Context, userID, pollID string, in services.PollInput) (*domain.Poll, error)
	Delete(ctx context.Context, userID, pollID string) error
	Results(ctx context.Context, userID, pollID string) (*services.PollResults, error)

	// Public, voter-facing paths.
	GetPublic(ctx context.Context, pollID string) (*domain.Poll, error)
	Vote(ctx context.Context, pollID string, in services.VoteInput, meta services.SubmitMeta) (*services.VoteReceipt, error)
	PublicResults(ctx context.Context, pollID string) (*services.PollResults, error)
}

// FormService defines form lifecycle and public submission operations.
type FormService interface {
	Create(ctx context.Context, userID, bioID string, in services.FormInput) (*domain.Form, error)
	ListPage(ctx context.Context, userID, bioID string, page, pageSize int) ([]domain.Form, int64, error)
	Get(ctx context.Context, userID, formID string) (*domain.Form, error)
	Update(ctx context.Context, userID, formID string, in services.FormInput) (*domain.Form, error)
	Delete(ctx context.Context, userID, formID string) error
	Answers(ctx context.Context, userID, formID string, page, pageSize int) ([]domain.FormAnswer, int64, error)

	// Public, visitor-facing path.
	Submit(ctx context.Context, formID string, answers map[string]any, meta services.SubmitMeta) (*domain.FormAnswer, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for bios, polls, and forms. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	bioSvc  BioService
	pollSvc PollService
	formSvc FormService

	// idemTTL is how long a stored Idempotency-Key record stays replayable.
	idemTTL time.Duration
}

// New constructs a Handlers instance bound to the given services. A non-
// positive idemTTL defaults to 24 hours.
func New(bioSvc BioService, pollSvc PollService, formSvc FormService, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{bioSvc: bioSvc, pollSvc: pollSvc, formSvc: formSvc, idemTTL: idemTTL}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateBioRequest is the JSON payload for claiming a bio slug.
type CreateBioRequest struct {
	// Slug is the public handle; lowercased and reduced to [a-z0-9-].
	Slug string `json:"slug" binding:"required,min=1,max=100" example:"jane-doe"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListBiosResponse wraps a page of bios and pagination information.
type ListBiosResponse struct {
	Bios       []domain.Bio `json:"bios"`
	Pagination Pagination   `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// paginationFor builds the metadata block for a page of total items.
func paginationFor(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// CreateBio godoc
// @ID          createBio
// @Summary     Create a bio
// @Description Claims a slug for the current user and returns the bio resource.
// @Tags        Bios
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CreateBioRequest  true  "Create bio payload"
//
// @Success     201  {object}  domain.Bio
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Slug already taken"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /bios [post]
func (h *Handlers) CreateBio(c *gin.Context) {
	var req CreateBioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slug required (1-100 chars)")
		return
	}

	b, err := h.bioSvc.Create(c.Request.Context(), userID(c), req.Slug)
	if err != nil {
		switch err {
		case services.ErrSlugRequired:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slug must contain at least one of a-z, 0-9, -")
		case services.ErrSlugTaken:
			fail(c, http.StatusConflict, ErrCodeSlugTaken, "slug already taken")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, b)
}

// ListBios godoc
// @ID          listBios
// @Summary     List bios (paginated)
// @Description Returns a page of the user's bios.
// @Tags        Bios
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"            minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"         minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListBiosResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /bios [get]
func (h *Handlers) ListBios(c *gin.Context) {
	uid := userID(c)
	page, pageSize := clampPagination(c)

	items, total, err := h.bioSvc.ListPage(c.Request.Context(), uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListBiosResponse{
		Bios:       items,
		Pagination: paginationFor(page, pageSize, total),
	})
}
