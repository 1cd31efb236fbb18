package resource

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/fhir"
	"github.com/clinicore/clinicore/internal/platform/policy"
	"github.com/clinicore/clinicore/internal/platform/store"
	"github.com/clinicore/clinicore/pkg/pagination"
)

// Handler exposes the resource facade over HTTP.
type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts the CRUD+search routes on the given group.
func (h *Handler) Register(g *echo.Group) {
	g.POST("/:type", h.create)
	g.GET("/:type", h.search)
	g.GET("/:type/:id", h.read)
	g.PUT("/:type/:id", h.update)
}

func (h *Handler) create(c echo.Context) error {
	body, err := decodeBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest,
			fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeStructure, "invalid json body"))
	}

	actor := auth.ActorFromContext(c.Request().Context())
	created, err := h.svc.Create(c.Request().Context(), actor, c.Param("type"), body)
	if err != nil {
		return h.writeError(c, err)
	}

	c.Response().Header().Set("Location", "/fhir/"+created.Type()+"/"+created.ID())
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) read(c echo.Context) error {
	actor := auth.ActorFromContext(c.Request().Context())
	r, err := h.svc.Read(c.Request().Context(), actor, c.Param("type"), c.Param("id"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) update(c echo.Context) error {
	body, err := decodeBody(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest,
			fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeStructure, "invalid json body"))
	}

	actor := auth.ActorFromContext(c.Request().Context())
	updated, err := h.svc.Update(c.Request().Context(), actor, c.Param("type"), c.Param("id"), body)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) search(c echo.Context) error {
	actor := auth.ActorFromContext(c.Request().Context())
	filters := searchFilters(c)

	results, err := h.svc.Search(c.Request().Context(), actor, c.Param("type"), filters)
	if err != nil {
		return h.writeError(c, err)
	}

	params := pagination.FromContext(c)
	from, to := params.Page(len(results))
	bundle := fhir.NewSearchBundle(results[from:to], len(results), c.Request().URL.RequestURI())
	return c.JSON(http.StatusOK, bundle)
}

// searchFilters collects query parameters, skipping the underscore-prefixed
// result-shaping controls.
func searchFilters(c echo.Context) map[string]string {
	filters := map[string]string{}
	for k, vs := range c.QueryParams() {
		if strings.HasPrefix(k, "_") || len(vs) == 0 {
			continue
		}
		filters[k] = vs[0]
	}
	return filters
}

func decodeBody(c echo.Context) (fhir.Resource, error) {
	var body fhir.Resource
	dec := json.NewDecoder(c.Request().Body)
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}

func (h *Handler) writeError(c echo.Context, err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, ve.ToOperationOutcome())
	case errors.Is(err, policy.ErrForbidden):
		return c.JSON(http.StatusForbidden, fhir.ForbiddenOutcome())
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, fhir.NotFoundOutcome(c.Param("type"), c.Param("id")))
	case errors.Is(err, store.ErrConflict):
		return c.JSON(http.StatusConflict, fhir.ConflictOutcome(c.Param("type"), c.Param("id")))
	default:
		h.log.Error().Err(err).
			Str("path", c.Request().URL.Path).
			Msg("request failed")
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome())
	}
}
