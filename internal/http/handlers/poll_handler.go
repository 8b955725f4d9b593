// Poll HTTP handlers.
//
// Owner-facing endpoints:
//   - POST   /bios/{id}/polls        (create, idempotent via Idempotency-Key)
//   - GET    /bios/{id}/polls        (list, paginated, ETag support)
//   - GET    /polls/{id}             (read)
//   - PUT    /polls/{id}             (partial update)
//   - DELETE /polls/{id}             (delete, votes cascade)
//   - GET    /polls/{id}/results     (aggregated results)
//
// Public, voter-facing endpoints:
//   - GET    /public/polls/{id}          (sanitized poll view)
//   - POST   /public/polls/{id}/vote     (cast a ballot)
//   - GET    /public/polls/{id}/results  (results when the owner shares them)
//
// Handlers are transport-thin: validation and idempotency replay live here,
// all business rules (availability window, duplicate guard, quota) live in
// the service layer. Public endpoints answer 404 for unavailable polls so
// probing cannot tell "missing" from "hidden".
package handlers

import (
	"fmt"
	"net/http"
	"strings"
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

// PollPayload is the owner-editable poll definition. Absent fields are left
// unchanged on update.
type PollPayload struct {
	Title                *string                     `json:"title" example:"Which track should we play?"`
	Description          *string                     `json:"description,omitempty"`
	Options              []services.PollOptionInput  `json:"options,omitempty"`
	IsActive             *bool                       `json:"is_active,omitempty"`
	AllowMultipleChoices *bool                       `json:"allow_multiple_choices,omitempty"`
	RequireName          *bool                       `json:"require_name,omitempty"`
	RequireEmail         *bool                       `json:"require_email,omitempty"`
	ShowResultsPublic    *bool                       `json:"show_results_public,omitempty"`
	ChartType            *string                     `json:"chart_type,omitempty" example:"bar"`
	ChartColors          []string                    `json:"chart_colors,omitempty"`
	StartsAt             *time.Time                  `json:"starts_at,omitempty"`
	EndsAt               *time.Time                  `json:"ends_at,omitempty"`
}

// toInput maps the transport payload onto the service input.
func (p PollPayload) toInput() services.PollInput {
	return services.PollInput{
		Title:                p.Title,
		Description:          p.Description,
		Options:              p.Options,
		IsActive:             p.IsActive,
		AllowMultipleChoices: p.AllowMultipleChoices,
		RequireName:          p.RequireName,
		RequireEmail:         p.RequireEmail,
		ShowResultsPublic:    p.ShowResultsPublic,
		ChartType:            p.ChartType,
		ChartColors:          p.ChartColors,
		StartsAt:             p.StartsAt,
		EndsAt:               p.EndsAt,
	}
}

// VoteRequest is the public ballot payload.
type VoteRequest struct {
	// OptionIDs are the selected option ids; at least one is required.
	OptionIDs []string `json:"option_ids" binding:"required"`
	Name      string   `json:"name,omitempty" example:"Jane"`
	Email     string   `json:"email,omitempty" example:"jane@example.com"`
}

// PublicPollView is the voter-facing projection of a poll. Vote counts and
// owner-only fields are withheld; results travel through the results
// endpoint, gated by show_results_public.
type PublicPollView struct {
	ID                   string             `json:"id"`
	Title                string             `json:"title"`
	Description          *string            `json:"description,omitempty"`
	Options              domain.PollOptions `json:"options"`
	AllowMultipleChoices bool               `json:"allow_multiple_choices"`
	RequireName          bool               `json:"require_name"`
	RequireEmail         bool               `json:"require_email"`
	ShowResultsPublic    bool               `json:"show_results_public"`
	ChartType            string             `json:"chart_type"`
	ChartColors          domain.StringList  `json:"chart_colors,omitempty"`
	StartsAt             *time.Time         `json:"starts_at,omitempty"`
	EndsAt               *time.Time         `json:"ends_at,omitempty"`
}

// publicView projects a poll for anonymous voters.
func publicView(p *domain.Poll) PublicPollView {
	return PublicPollView{
		ID:                   p.ID,
		Title:                p.Title,
		Description:          p.Description,
		Options:              p.Options,
		AllowMultipleChoices: p.AllowMultipleChoices,
		RequireName:          p.RequireName,
		RequireEmail:         p.RequireEmail,
		ShowResultsPublic:    p.ShowResultsPublic,
		ChartType:            p.ChartType,
		ChartColors:          p.ChartColors,
		StartsAt:             p.StartsAt,
		EndsAt:               p.EndsAt,
	}
}

// ListPollsResponse wraps a page of polls and pagination information.
type ListPollsResponse struct {
	Polls      []domain.Poll `json:"polls"`
	Pagination Pagination    `json:"pagination"`
}

//
// Owner handlers
//

// CreatePoll godoc
// @ID          createPoll
// @Summary     Create a poll under a bio
// @Description Creates a poll after checking the owner's plan quota. Supports
// @Description idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Polls
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"
// @Param       id               path    string  true  "Bio ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PollPayload  true  "Poll definition"
//
// @Success     201  {object}  domain.Poll
// @Success     200  {object}  domain.Poll "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse "Plan limit reached"
// @Failure     404  {object}  handlers.ErrorResponse "Bio not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /bios/{id}/polls [post]
func (h *Handlers) CreatePoll(c *gin.Context) {
	ctx := c.Request.Context()
	bioID := c.Param("id")
	if _, err := uuid.Parse(bioID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "bio id must be a UUID")
		return
	}

	var req PollPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid := userID(c)

	// Idempotency (replay path).
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		if prev := h.replayPoll(c, uid, bioID, idemKey); prev != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, prev)
			return
		}
	}

	p, err := h.pollSvc.Create(ctx, uid, bioID, req.toInput())
	if err != nil {
		h.failPollWrite(c, err)
		return
	}

	// Idempotency (store path) - best effort.
	if idemKey != "" {
		if svc, okSvc := h.pollSvc.(*services.PollService); okSvc && svc.DB != nil {
			_, _ = repo.CreateIdempotency(ctx, svc.DB, uid, bioID, idemKey, p.ID, http.StatusCreated, h.idemTTL)
		}
	}

	ok(c, http.StatusCreated, p)
}

// ListPolls godoc
// @ID          listPolls
// @Summary     List polls of a bio (paginated)
// @Description Returns a page of the bio's polls. Supports weak ETag via If-None-Match.
// @Tags        Polls
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       id             path    string  true  "Bio ID (UUID)"  format(uuid)
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListPollsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Bio not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /bios/{id}/polls [get]
func (h *Handlers) ListPolls(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	bioID := c.Param("id")
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if svc, okSvc := h.pollSvc.(*services.PollService); okSvc && svc.DB != nil {
		count, maxTS, err := repo.PollsStats(ctx, svc.DB, bioID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"polls:%s:%s:%d:%d"`, uid, bioID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.pollSvc.ListPage(ctx, uid, bioID, page, pageSize)
	if err != nil {
		if err == services.ErrBioNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "bio not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListPollsResponse{
		Polls:      items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

// GetPoll godoc
// @ID          getPoll
// @Summary     Get a poll
// @Description Returns a poll owned by the current user.
// @Tags        Polls
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       id         path    string  true  "Poll ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Poll
// @Failure     404  {object} handlers.ErrorResponse "Poll not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /polls/{id} [get]
func (h *Handlers) GetPoll(c *gin.Context) {
	p, err := h.pollSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if err == services.ErrPollNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdatePoll godoc
// @ID          updatePoll
// @Summary     Update a poll
// @Description Applies a partial definition to a poll owned by the current user.
// @Tags        Polls
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       id         path    string  true  "Poll ID (UUID)"  format(uuid)
// @Param       body       body    handlers.PollPayload  true  "Fields to change"
//
// @Success     200  {object} domain.Poll
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Poll not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /polls/{id} [put]
func (h *Handlers) UpdatePoll(c *gin.Context) {
	var req PollPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	p, err := h.pollSvc.Update(c.Request.Context(), userID(c), c.Param("id"), req.toInput())
	if err != nil {
		h.failPollWrite(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// DeletePoll godoc
// @ID          deletePoll
// @Summary     Delete a poll
// @Description Deletes a poll owned by the current user; its votes cascade.
// @Tags        Polls
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       id         path    string  true  "Poll ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Poll not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /polls/{id} [delete]
func (h *Handlers) DeletePoll(c *gin.Context) {
	if err := h.pollSvc.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		if err == services.ErrPollNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// PollResults godoc
// @ID          pollResults
// @Summary     Get aggregated poll results
// @Description Returns per-option counts and percentages for a poll owned by the current user.
// @Tags        Polls
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"
// @Param       id         path    string  true  "Poll ID (UUID)"  format(uuid)
//
// @Success     200  {object} services.PollResults
// @Failure     404  {object} handlers.ErrorResponse "Poll not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /polls/{id}/results [get]
func (h *Handlers) PollResults(c *gin.Context) {
	res, err := h.pollSvc.Results(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if err == services.ErrPollNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, res)
}

//
// Public handlers
//

// GetPublicPoll godoc
// @ID          getPublicPoll
// @Summary     Get a poll (public)
// @Description Returns the voter-facing view of an available poll. Unavailable
// @Description and missing polls both answer 404.
// @Tags        Public
// @Produce     json
//
// @Param       id  path  string  true  "Poll ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.PublicPollView
// @Failure     404  {object} handlers.ErrorResponse "Poll not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /public/polls/{id} [get]
func (h *Handlers) GetPublicPoll(c *gin.Context) {
	p, err := h.pollSvc.GetPublic(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == services.ErrPollNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, publicView(p))
}

// Vote godoc
// @ID          vote
// @Summary     Cast a vote (public)
// @Description Records one ballot per voter per poll. Duplicate voters are
// @Description rejected with 409; votes outside the availability window with
// @Description 409 poll_closed.
// @Tags        Public
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Poll ID (UUID)"  format(uuid)
// @Param       body  body  handlers.VoteRequest  true  "Ballot payload"
//
// @Success     201  {object} services.VoteReceipt
// @Failure     400  {object} handlers.ErrorResponse "Invalid ballot"
// @Failure     404  {object} handlers.ErrorResponse "Poll not found"
// @Failure     409  {object} handlers.ErrorResponse "Already voted or poll closed"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /public/polls/{id}/vote [post]
func (h *Handlers) Vote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.ObserveVote("invalid")
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "option_ids required")
		return
	}

	in := services.VoteInput{
		OptionIDs: req.OptionIDs,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
	}
	meta := services.SubmitMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	receipt, err := h.pollSvc.Vote(c.Request.Context(), c.Param("id"), in, meta)
	if err != nil {
		switch err {
		case services.ErrPollNotFound:
			middleware.ObserveVote("error")
			fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
		case services.ErrPollClosed:
			middleware.ObserveVote("closed")
			fail(c, http.StatusConflict, ErrCodePollClosed, "poll is not accepting votes")
		case services.ErrAlreadyVoted:
			middleware.ObserveVote("duplicate")
			fail(c, http.StatusConflict, ErrCodeAlreadyVoted, "you have already voted on this poll")
		case services.ErrNoOptionSelected,
			services.ErrMultipleNotAllowed,
			services.ErrInvalidOption,
			services.ErrNameRequired,
			services.ErrEmailRequired:
			middleware.ObserveVote("invalid")
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			middleware.ObserveVote("error")
			fail(c, http.StatusInternalServerError, ErrCodeVoteFailed, err.Error())
		}
		return
	}

	middleware.ObserveVote("accepted")
	ok(c, http.StatusCreated, receipt)
}

// PublicPollResults godoc
// @ID          publicPollResults
// @Summary     Get poll results (public)
// @Description Returns aggregated results when the owner shares them publicly.
// @Tags        Public
// @Produce     json
//
// @Param       id  path  string  true  "Poll ID (UUID)"  format(uuid)
//
// @Success     200  {object} services.PollResults
// @Failure     403  {object} handlers.ErrorResponse "Results are private"
// @Failure     404  {object} handlers.ErrorResponse "Poll not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /public/polls/{id}/results [get]
func (h *Handlers) PublicPollResults(c *gin.Context) {
	res, err := h.pollSvc.PublicResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch err {
		case services.ErrPollNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
		case services.ErrResultsPrivate:
			fail(c, http.StatusForbidden, ErrCodeResultsPrivate, "results are not public for this poll")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, res)
}

//
// Shared error mapping
//

// failPollWrite translates poll create/update errors into HTTP responses.
func (h *Handlers) failPollWrite(c *gin.Context, err error) {
	if le, okLim := services.AsLimitExceeded(err); okLim {
		fail(c, http.StatusForbidden, ErrCodeLimitExceeded, le.Error())
		return
	}
	switch err {
	case services.ErrBioNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "bio not found")
	case services.ErrPollNotFound:
		fail(c, http.StatusNotFound, ErrCodeNotFound, "poll not found")
	case services.ErrTitleRequired, services.ErrTooFewOptions:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
	}
}

// replayPoll serves the stored result of a completed idempotent creation, or
// nil when no replayable record exists.
func (h *Handlers) replayPoll(c *gin.Context, uid, bioID, key string) *domain.Poll {
	svc, okSvc := h.pollSvc.(*services.PollService)
	if !okSvc || svc.DB == nil {
		return nil
	}
	rec, err := repo.GetIdempotency(c.Request.Context(), svc.DB, uid, bioID, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil
	}
	prev, err := h.pollSvc.Get(c.Request.Context(), uid, rec.ResourceID)
	if err != nil {
		return nil
	}
	return prev
}
