package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/colorbook/pkg/api/errors"
	"github.com/jordanlanch/colorbook/pkg/api/middleware"
	"github.com/jordanlanch/colorbook/pkg/domain"
	"github.com/jordanlanch/colorbook/pkg/logger"
	"github.com/jordanlanch/colorbook/pkg/models"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

// ResourceStore persists the quota-counted records
type ResourceStore interface {
	CreateResource(ctx context.Context, r *models.Resource) error
	GetResource(ctx context.Context, userID int, kind subscription.Resource, id int) (*models.Resource, error)
	ListResources(ctx context.Context, userID int, kind subscription.Resource, q models.PaginationQuery) ([]models.Resource, int, error)
}

// ResourceCreatedResponse is the stored record plus, on quota-limited plans,
// the caller's usage of the feature after this record counted.
type ResourceCreatedResponse struct {
	models.Resource
	Usage *middleware.UsageInfo `json:"usage,omitempty"`
}

// ResourceHandler creates and lists projects, stories, images and exports
type ResourceHandler struct {
	store  ResourceStore
	logger logger.Logger
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(store ResourceStore, log logger.Logger) *ResourceHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &ResourceHandler{store: store, logger: log}
}

// Create returns a handler that stores a record of kind for the caller.
// Routes put CheckUsage for the matching feature in front of it.
//
// @Summary Create a metered record
// @Description Store a project, story, image or export. Counts against the plan's quota for that kind.
// @Tags Resources
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateResourceRequest true "Record"
// @Success 201 {object} ResourceCreatedResponse
// @Failure 400 {object} models.ValidationErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 429 {object} models.UsageLimitResponse "Quota reached"
// @Router /projects [post]
// @Router /stories [post]
// @Router /images [post]
// @Router /exports [post]
func (h *ResourceHandler) Create(kind subscription.Resource) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserIDFromContext(c)
		if !ok {
			return errors.Respond(c, domain.ErrCodeAuthMissing, "Authentication required")
		}
		req, ok := middleware.ValidatedBody[models.CreateResourceRequest](c)
		if !ok {
			return errors.InternalError(c, h.logger, errMissingValidation)
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
		defer cancel()

		r := &models.Resource{
			UserID: userID,
			Kind:   kind,
			Title:  req.Title,
		}
		if err := h.store.CreateResource(ctx, r); err != nil {
			return errors.InternalError(c, h.logger, err)
		}

		h.logger.Debug("resource created", "kind", string(kind), "id", r.ID, "user_id", userID)

		resp := ResourceCreatedResponse{Resource: *r}
		if usage, ok := middleware.UsageFromContext(c); ok {
			after := *usage
			after.Current++
			if after.Remaining > 0 {
				after.Remaining--
			}
			resp.Usage = &after
		}
		return c.JSON(http.StatusCreated, resp)
	}
}

// List returns a handler for one page of the caller's records of kind
//
// @Summary List records
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(20)
// @Param sort query string false "Sort field" Enums(created_at, updated_at, title)
// @Param order query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} models.ResourceListResponse
// @Failure 400 {object} models.ValidationErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /projects [get]
// @Router /stories [get]
// @Router /images [get]
// @Router /exports [get]
func (h *ResourceHandler) List(kind subscription.Resource) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserIDFromContext(c)
		if !ok {
			return errors.Respond(c, domain.ErrCodeAuthMissing, "Authentication required")
		}
		q, ok := middleware.ValidatedQuery[models.PaginationQuery](c)
		if !ok {
			return errors.InternalError(c, h.logger, errMissingValidation)
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
		defer cancel()

		items, total, err := h.store.ListResources(ctx, userID, kind, *q)
		if err != nil {
			return errors.InternalError(c, h.logger, err)
		}

		return c.JSON(http.StatusOK, models.ResourceListResponse{
			Data:       items,
			Pagination: models.NewPaginationInfo(q.Page, q.Limit, total),
		})
	}
}

// Get returns a handler for one of the caller's records of kind, addressed
// by the :id path parameter.
//
// @Summary Get a record
// @Description HD export download requires pro; the enterprise routes require enterprise.
// @Tags Resources
// @Produce json
// @Security BearerAuth
// @Param id path int true "Record ID"
// @Success 200 {object} models.Resource
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.TierErrorResponse "Tier too low or subscription inactive"
// @Failure 404 {object} models.ErrorResponse
// @Router /exports/{id}/hd [get]
// @Router /enterprise/projects/{id} [get]
// @Router /enterprise/stories/{id} [get]
// @Router /enterprise/images/{id} [get]
// @Router /enterprise/exports/{id} [get]
func (h *ResourceHandler) Get(kind subscription.Resource) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, ok := middleware.UserIDFromContext(c)
		if !ok {
			return errors.Respond(c, domain.ErrCodeAuthMissing, "Authentication required")
		}
		params, ok := middleware.ValidatedParams[models.ResourceParams](c)
		if !ok {
			return errors.InternalError(c, h.logger, errMissingValidation)
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
		defer cancel()

		r, err := h.store.GetResource(ctx, userID, kind, params.ID)
		if err != nil {
			return errors.FromDomain(c, h.logger, err)
		}
		return c.JSON(http.StatusOK, r)
	}
}
