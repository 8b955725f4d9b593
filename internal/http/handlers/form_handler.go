// Form HTTP handlers.
//
// Owner-facing endpoints:
//   - POST   /bios/{id}/forms        (create, idempotent via Idempotency-Key)
//   - GET    /bios/{id}/forms        (list, paginated, ETag support)
//   - GET    /forms/{id}             (read)
//   - PUT    /forms/{id}             (partial update)
//   - DELETE /forms/{id}             (delete, answers cascade)
//   - GET    /forms/{id}/answers     (list recorded answers)
//
// Public, visitor-facing endpoint:
//   - POST   /public/forms/{id}/submit
//
// Unlike votes, submissions carry no duplicate guard: a form accepts repeat
// submissions from the same visitor.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/biolinkhq/go-biolink-backend/internal/domain"
	"github.com/biolinkhq/go-biolink-backend/internal/http/middleware"
	"github.com/biolinkhq/go-biolink-backend/internal/repo"
	"github.com/biolinkhq/go-biolink-backend/internal/services"
)

//
// DTOs
//

// FormPayload is the owner-editable form definition. Absent fields are left
// unchanged on update.
type FormPayload struct {
	Title       *string            `json:"title" example:"Join the mailing list"`
	Description *string            `json:"description,omitempty"`
	Fields      []domain.FormField `json:"fields,omitempty"`
	IsActive    *bool              `json:"is_active,omitempty"`
}

// toInput maps the transport payload onto the service input.
func (p FormPayload) toInput() services.FormInput {
	return services.FormInput{
		Title:       p.Title,
		Description: p.Description,
		Fields:      p.Fields,
		IsActive:    p.IsActive,
	}
}

// SubmitFormRequest is the public submission payload, keyed by field id.
type SubmitFormRequest struct {
	Answers map[string]any `json:"answers" binding:"required"`
}

// SubmitFormResponse acknowledges one accepted submission.
type SubmitFormResponse struct {
	Success  bool   `json:"success"`
	FormID   string `json:"form_id"`
	AnswerID string `json:"answer_id"`
}

// ListFormsResponse wraps a page of forms and pagination information.
type ListFormsResponse struct {
	Forms      []domain.Form `json:"forms"`
	Pagination Pagination    `json:"pagination"`
}

// ListAnswersResponse wraps a page of recorded answers.
type ListAnswersResponse struct {
	Answers    []domain.FormAnswer `json:"answers"`
	Pagination Pagination          `json:"pagination"`
}

//
// Owner handlers
//

// CreateForm godoc
// @ID          createForm
// @Summary     Create a form under a bio
// @Description Creates a form after checking the owner's plan quota. Supports
// @Description idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Forms
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       id               path    string  true  "Bio ID (UUID)"  format(uuid)
// @Param       body             body    handlers.FormPayload  true  "Form definition"
//
// @Success     201  {object}  domain.Form
// @Success     200  {object}  domain.Form "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse "Plan limit reached"
// @Failure     404  {object}  handlers.ErrorResponse "Bio not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /bios/{id}/forms [post]
func (h *Handlers) CreateForm(c *gin.Context) {
	ctx := c.Request.Context()
	bioID := c.Param("id")
	if _, err := uuid.Parse(bioID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "bio id must be a UUID")
		return
	}

	var req FormPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid := userID(c)

	// Idempotency (replay path).
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		if prev := h.replayForm(c, uid, bioID, idemKey); prev != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, prev)
			return
		}
	}

	f, err := h.formSvc.Create(ctx, uid, bioID, req.toInput())
	if err != nil {
		h.failFormWrite(c, err)
		return
	}

	// Idempotency (store path) - best effort.
	if idemKey != "" {
		if svc, okSvc := h.formSvc.(*services.FormService); okSvc && svc.DB != nil {
			_, _ = repo.CreateIdempotency(ctx, svc.DB, uid, bioID, idemKey, f.ID, http.StatusCreated, h.idemTTL)
		}
	}

	ok(c, http.StatusCreated, f)
}

// ListForms godoc
// @ID          listForms
// @Summary     List forms of a bio (paginated)
// @Description Returns a page of the bio's forms. Supports weak ETag via If-None-Match.
// @Tags        Forms
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       id             path    string  true  "Bio ID (UUID)"  format(uuid)
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListFormsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Bio not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /bios/{id}/forms [get]
func (h *Handlers) ListForms(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	bioID := c.Param("id")
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if svc, okSvc := h.formSvc.(*services.FormService); okSvc && svc.DB != nil {
		count, maxTS, err := repo.FormsStats(ctx, svc.DB, bioID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"forms:%s:%s:%d:%d"`, uid, bioID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.formSvc.ListPage(ctx, uid, bioID, page, pageSize)
	if err != nil {
		if err == services.ErrBioNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "bio not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListFormsResponse{
		Forms:      items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

// GetForm godoc
// @ID          getForm
// @Summary     Get a form
// @Description Returns a form owned by the current user.
// @Tags        Forms
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       id         path    string  true  "Form ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Form
// @Failure     404  {object} handlers.ErrorResponse "Form not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /forms/{id} [get]
func (h *Handlers) GetForm(c *gin.Context) {
	f, err := h.formSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if err == services.ErrFormNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "form not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, f)
}

// UpdateForm godoc
// @ID          updateForm
// @Summary     Update a form
// @Description Applies a partial definition to a form owned by the current user.
// @Tags        Forms
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       id         path    string  true  "Form ID (UUID)"  format(uuid)
// @Param       body       body    handlers.FormPayload  true  "Fields to change"
//
// @Success     200  {object} domain.Form
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Form not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /forms/{id} [put]
func (h *Handlers) UpdateForm(c *gin.Context) {
	var req FormPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	f, err := h.formSvc.Update(c.Request.Context(), userID(c), c.Param("id"), req.toInput())
	if err != nil {
		h.failFormWrite(c, err)
		return
	}
	ok(c, http.StatusOK, f)
}

// DeleteForm godoc
// @ID          deleteForm
// @Summary     Delete a form
// @Description Deletes a form owned by the current user; its answers cascade.
// @Tags        Forms
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       id         path    string  true  "Form ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Form not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /forms/{id} [delete]
func (h *Handlers) DeleteForm(c *gin.Context) {
	if err := h.formSvc.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		if err == services.ErrFormNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "form not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// ListFormAnswers godoc
// @ID          listFormAnswers
// @Summary     List form answers (paginated)
// @Description Returns the recorded answers of a form owned by the current user.
// @Tags        Forms
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       id         path    string  true  "Form ID (UUID)"  format(uuid)
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListAnswersResponse
// @Failure     404  {object} handlers.ErrorResponse "Form not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /forms/{id}/answers [get]
func (h *Handlers) ListFormAnswers(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.formSvc.Answers(c.Request.Context(), userID(c), c.Param("id"), page, pageSize)
	if err != nil {
		if err == services.ErrFormNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "form not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListAnswersResponse{
		Answers:    items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

//
// Public handlers
//

// SubmitForm godoc
// @ID          submitForm
// @Summary     Submit a form (public)
// @Description Records one submission for an active form. Repeat submissions
// @Description are allowed.
// @Tags        Public
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Form ID (UUID)"  format(uuid)
// @Param       body  body  handlers.SubmitFormRequest  true  "Answers keyed by field id"
//
// @Success     201  {object} handlers.SubmitFormResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     404  {object} handlers.ErrorResponse "Form not found"
// @Failure     409  {object} handlers.ErrorResponse "Form is inactive"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /public/forms/{id}/submit [post]
func (h *Handlers) SubmitForm(c *gin.Context) {
	var req SubmitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Answers == nil {
		middleware.ObserveSubmission("invalid")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "answers required")
		return
	}

	meta := services.SubmitMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	a, err := h.formSvc.Submit(c.Request.Context(), c.Param("id"), req.Answers, meta)
	if err != nil {
		switch err {
		case services.ErrFormNotFound:
			middleware.ObserveSubmission("error")
			fail(c, http.StatusNotFound, ErrCodeNotFound, "form not found")
		case services.ErrFormInactive:
			middleware.ObserveSubmission("inactive")
			fail(c, http.StatusConflict, ErrCodeFormInactive, "form is not accepting submissions")
		default:
			middleware.ObserveSubmission("error")
			fail(c, http.StatusInternalServerError, ErrCodeSubmitFailed, err.Error())
		}
		return
	}

	middleware.ObserveSubmission("accepted")
	ok(c, http.StatusCreated, SubmitFormResponse{
		Success:  true,
		FormID:   a.FormID,
		AnswerID: a.ID,
	})
}

//
// Shared error mapping
//

// failFormWrite translates form create/update errors into HTTP responses.
func (h *Handlers) failFormWrite(c *gin.Context, err error) {
	if le, okLim := services.AsLimitExceeded(err); okLim {
		fail(c, http.StatusForbidden, ErrCodeLimitExceeded, le.Error())
		return
	}
	switch err {
	case services.ErrBioNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "bio not found")
	case services.ErrFormNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "form not found")
	case services.ErrTitleRequired:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
	}
}

// replayForm serves the stored result of a completed idempotent creation, or
// nil when no replayable record exists.
func (h *Handlers) replayForm(c *gin.Context, uid, bioID, key string) *domain.Form {
	svc, okSvc := h.formSvc.(*services.FormService)
	if !okSvc || svc.DB == nil {
		return nil
	}
	rec, err := repo.GetIdempotency(c.Request.Context(), svc.DB, uid, bioID, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil
	}
	prev, err := h.formSvc.Get(c.Request.Context(), uid, rec.ResourceID)
	if err != nil {
		return nil
	}
	return prev
}
