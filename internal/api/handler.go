// Package api is the RPC façade: it decodes requests into typed operations
// against the query engine and mutation gateway and re-encodes the results.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/mutate"
	"github.com/arkivo/arkivo/internal/platform/httpx"
	"github.com/arkivo/arkivo/internal/query"
)

// Handler serves the entity RPC surface.
type Handler struct {
	logger    *slog.Logger
	engine    *query.Engine
	mutations *mutate.Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, engine *query.Engine, mutations *mutate.Service) *Handler {
	return &Handler{
		logger:    logger,
		engine:    engine,
		mutations: mutations,
		validator: validator.New(),
	}
}

// MountRoutes registers the RPC routes. The identity middleware must run
// before any of them.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/entities/{uuid}", h.getEntity)
	r.Get("/entities/by-name/{kind}/{name}", h.getEntityByName)
	r.Post("/entities/search", h.searchEntities)
	r.Post("/entities", h.createEntity)
	r.Patch("/entities/{uuid}", h.updateEntity)
	r.Delete("/entities/{uuid}", h.deleteEntity)
	r.Post("/entities/{uuid}/attributes", h.addAttribute)
	r.Delete("/entities/{uuid}/attributes/{key}", h.deleteAttributes)
	r.Post("/links", h.addLink)
	r.Delete("/links", h.deleteLink)
	r.Post("/permissions", h.addPermission)
	r.Delete("/permissions", h.deletePermission)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (*access.RequestContext, bool) {
	rc := access.FromContext(r.Context())
	if rc == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "")
		return nil, false
	}
	return rc, true
}

func (h *Handler) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed identifier")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "uuid")
	if !ok {
		return
	}
	v, err := h.engine.Get(r.Context(), rc, query.Criteria{UUID: id})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntityPayload(v))
}

func (h *Handler) getEntityByName(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.caller(w, r)
	if !ok {
		return
	}
	v, err := h.engine.Get(r.Context(), rc, query.Criteria{
		Kind: chi.URLParam(r, "kind"),
		Name: chi.URLParam(r, "name"),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntityPayload(v))
}

func (h *Handler) searchEntities(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed criteria")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, err)
		return
	}
	criteria, err := req.toCriteria()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed identifier in criteria")
		return
	}
	stream := httpx.NewStream(w)
	err = h.engine.Search(r.Context(), rc, criteria, func(v query.View) error {
		return stream.Send(toEntityPayload(v))
	})
	if err != nil {
		if stream.Started() {
			// Headers are gone; all we can do is cut the stream.
			h.logger.Error("search aborted mid-stream", slog.Any("error", err))
			return
		}
		if errors.Is(err, r.Context().Err()) && r.Context().Err() != nil {
			return
		}
		h.respondError(w, err)
		return
	}
	if !stream.Started() {
		// Empty result set still gets the NDJSON content type.
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req createEntityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, err)
		return
	}
	ownerRole, err := uuid.Parse(req.OwnerRole)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed owner role")
		return
	}
	created, err := h.mutations.CreateEntity(r.Context(), rc, req.Kind, req.Name, ownerRole)
	if err != nil {
		h.respondError(w, err)
		return
	}
	v, err := h.engine.Get(r.Context(), rc, query.Criteria{UUID: created.UUID})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntityPayload(v))
}

func (h *Handler) updateEntity(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "uuid")
	if !ok {
		return
	}
	var req updateEntityRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, err)
		return
	}
	if _, err := h.mutations.UpdateEntity(r.Context(), rc, id, req.Name); err != nil {
		h.respondError(w, err)
		return
	}
	v, err := h.engine.Get(r.Context(), rc, query.Criteria{UUID: id})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntityPayload(v))
}

func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "uuid")
	if !ok {
		return
	}
	if err := h.mutations.DeleteEntity(r.Context(), rc, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addAttribute(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "uuid")
	if !ok {
		return
	}
	var req addAttributeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, err)
		return
	}
	attr, err := h.mutations.AddAttribute(r.Context(), rc, id, req.Key, req.Value)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAttributePayload(attr))
}

func (h *Handler) deleteAttributes(w http.ResponseWriter, r *http.Request) {
	rc, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := h.pathUUID(w, r, "uuid")
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	if key == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "attribute key required")
		return
	}
	if err := h.mutations.DeleteAttributes(r.Context(), rc, id, key); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addLink(w http.ResponseWriter, r *http.Request) {
	rc, req, ok := decodeLinkRequest(h, w, r)
	if !ok {
		return
	}
	from, to, ok := h.parseLinkEndpoints(w, req)
	if !ok {
		return
	}
	link, err := h.mutations.AddLink(r.Context(), rc, from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toLinkPayload(link))
}

func (h *Handler) deleteLink(w http.ResponseWriter, r *http.Request) {
	rc, req, ok := decodeLinkRequest(h, w, r)
	if !ok {
		return
	}
	from, to, ok := h.parseLinkEndpoints(w, req)
	if !ok {
		return
	}
	if err := h.mutations.DeleteLink(r.Context(), rc, from, to); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeLinkRequest(h *Handler, w http.ResponseWriter, r *http.Request) (*access.RequestContext, linkRequest, bool) {
	rc, ok := h.caller(w, r)
	if !ok {
		return nil, linkRequest{}, false
	}
	var req linkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request")
		return nil, linkRequest{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, err)
		return nil, linkRequest{}, false
	}
	return rc, req, true
}

func (h *Handler) parseLinkEndpoints(w http.ResponseWriter, req linkRequest) (uuid.UUID, uuid.UUID, bool) {
	from, err := uuid.Parse(req.From)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed from identifier")
		return uuid.Nil, uuid.Nil, false
	}
	to, err := uuid.Parse(req.To)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed to identifier")
		return uuid.Nil, uuid.Nil, false
	}
	return from, to, true
}

func (h *Handler) addPermission(w http.ResponseWriter, r *http.Request) {
	rc, req, ok := h.decodePermissionRequest(w, r)
	if !ok {
		return
	}
	entityID, roleID, ok := h.parsePermissionIDs(w, req)
	if !ok {
		return
	}
	perm, err := h.mutations.AddPermission(r.Context(), rc, entityID, roleID, req.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionPayload(perm))
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	rc, req, ok := h.decodePermissionRequest(w, r)
	if !ok {
		return
	}
	entityID, roleID, ok := h.parsePermissionIDs(w, req)
	if !ok {
		return
	}
	if err := h.mutations.DeletePermission(r.Context(), rc, entityID, roleID, req.Name); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodePermissionRequest(w http.ResponseWriter, r *http.Request) (*access.RequestContext, permissionRequest, bool) {
	rc, ok := h.caller(w, r)
	if !ok {
		return nil, permissionRequest{}, false
	}
	var req permissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed request")
		return nil, permissionRequest{}, false
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, err)
		return nil, permissionRequest{}, false
	}
	return rc, req, true
}

func (h *Handler) parsePermissionIDs(w http.ResponseWriter, req permissionRequest) (uuid.UUID, uuid.UUID, bool) {
	entityID, err := uuid.Parse(req.Entity)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed entity identifier")
		return uuid.Nil, uuid.Nil, false
	}
	roleID, err := uuid.Parse(req.Role)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Argument", "malformed role identifier")
		return uuid.Nil, uuid.Nil, false
	}
	return entityID, roleID, true
}
