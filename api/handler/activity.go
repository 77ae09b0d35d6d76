package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/planloop/backend/api/transport"
	"github.com/planloop/backend/domain"
	"github.com/planloop/backend/pkg/httpcontext"
	"github.com/planloop/backend/repository"
	activityUC "github.com/planloop/backend/usecase/activity"
	copyUC "github.com/planloop/backend/usecase/plancopy"
)

type ActivityHandler struct {
	baseHandler
	uc     *activityUC.UseCase
	copier *copyUC.UseCase
}

func NewActivityHandler(uc *activityUC.UseCase, copier *copyUC.UseCase, adapter *httpcontext.Adapter, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		baseHandler: newBaseHandler(adapter, logger),
		uc:          uc,
		copier:      copier,
	}
}

// @Summary List activities
// @Tags activities
// @Router /api/v1/activities [get]
func (h *ActivityHandler) ListActivities(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	filter := repository.ActivityFilter{
		UserID:   userID,
		Status:   string(ctx.QueryArgs().Peek("status")),
		Category: string(ctx.QueryArgs().Peek("category")),
		Archived: ctx.QueryArgs().GetBool("archived"),
		Limit:    parseInt(string(ctx.QueryArgs().Peek("limit")), 50),
		Offset:   parseInt(string(ctx.QueryArgs().Peek("offset")), 0),
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	activities, err := h.uc.List(stdCtx, filter)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, activities)
}

// @Summary Create activity
// @Tags activities
// @Router /api/v1/activities [post]
func (h *ActivityHandler) CreateActivity(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	var req transport.ActivityCreateRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil || req.Title == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	activity := &domain.Activity{
		UserID:      userID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Status:      req.Status,
	}
	seeds := make([]domain.TaskSeed, 0, len(req.Tasks))
	for _, t := range req.Tasks {
		seed := domain.TaskSeed{
			Title:       t.Title,
			Description: t.Description,
			Category:    t.Category,
		}
		if t.DueDate != "" {
			if parsed, err := time.Parse(time.RFC3339, t.DueDate); err == nil {
				seed.DueDate = &parsed
			}
		}
		seeds = append(seeds, seed)
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	created, tasks, err := h.uc.Create(stdCtx, activity, seeds)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, map[string]interface{}{
		"activity": created,
		"tasks":    tasks,
	})
}

// @Summary Get activity with tasks
// @Tags activities
// @Router /api/v1/activities/{id} [get]
func (h *ActivityHandler) GetActivity(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing activity id", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	activity, tasks, err := h.uc.Get(stdCtx, userID, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"activity": activity,
		"tasks":    tasks,
	})
}

// @Summary Archive activity
// @Tags activities
// @Router /api/v1/activities/{id}/archive [post]
func (h *ActivityHandler) ArchiveActivity(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing activity id", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.uc.Archive(stdCtx, userID, id); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusNoContent, nil)
}

// @Summary Publish a share token for an activity
// @Tags activities
// @Router /api/v1/activities/{id}/share [post]
func (h *ActivityHandler) ShareActivity(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing activity id", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	token, err := h.uc.Share(stdCtx, userID, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]string{"share_token": token})
}

// @Summary Fetch a shared plan by token
// @Tags shared
// @Router /api/v1/shared/{token} [get]
func (h *ActivityHandler) GetShared(ctx *fasthttp.RequestCtx) {
	token, _ := ctx.UserValue("token").(string)
	if token == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing share token", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	activity, tasks, err := h.uc.GetShared(stdCtx, token)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, map[string]interface{}{
		"activity": activity,
		"tasks":    tasks,
	})
}

// @Summary Copy a shared plan into the caller's account
// @Tags shared
// @Router /api/v1/shared/{token}/copy [post]
func (h *ActivityHandler) CopyShared(ctx *fasthttp.RequestCtx) {
	userID := h.userID(ctx)
	if userID == "" {
		return
	}

	token, _ := ctx.UserValue("token").(string)
	if token == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing share token", nil))
		return
	}

	var req transport.CopyRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
			return
		}
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.copier.Copy(stdCtx, token, userID, req.ForceUpdate)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	if result.RequiresConfirmation {
		h.respondJSON(ctx, http.StatusConflict,
			transport.NewError(string(domain.ErrCodeConflict), "an identical copy already exists", result))
		return
	}

	status := http.StatusCreated
	if result.IsUpdate {
		status = http.StatusOK
	}
	h.respondSuccess(ctx, status, result)
}
