package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"estate-admin/internal/apiserver/auth"
	"estate-admin/internal/shared/model"
	"estate-admin/internal/shared/storage"
)

// catalog.go 内容目录 CRUD 接口
//
// 每个内容集合注册一组静态路由，守卫以固定的 (集合, 动作) 配置：
//   GET    /api/v1/{collection}               view
//   GET    /api/v1/{collection}/{id}          view
//   GET    /api/v1/{collection}/slug/{slug}   view
//   POST   /api/v1/{collection}               add
//   PUT    /api/v1/{collection}/{id}          edit
//   DELETE /api/v1/{collection}/{id}          delete
//   POST   /api/v1/{collection}/{id}/publish  moderate

// registerCatalogRoutes 为每个内容集合注册 CRUD 路由
func (h *Handler) registerCatalogRoutes(mux *http.ServeMux) {
	for _, col := range model.ContentCollections {
		base := "/api/v1/" + string(col)
		mux.HandleFunc("GET "+base,
			h.guard.RequireCollection(col, model.ActionView, h.listEntries(col)))
		mux.HandleFunc("GET "+base+"/{id}",
			h.guard.RequireCollection(col, model.ActionView, h.getEntry(col)))
		mux.HandleFunc("GET "+base+"/slug/{slug}",
			h.guard.RequireCollection(col, model.ActionView, h.getEntryBySlug(col)))
		mux.HandleFunc("POST "+base,
			h.guard.RequireCollection(col, model.ActionAdd, h.createEntry(col)))
		mux.HandleFunc("PUT "+base+"/{id}",
			h.guard.RequireCollection(col, model.ActionEdit, h.updateEntry(col)))
		mux.HandleFunc("DELETE "+base+"/{id}",
			h.guard.RequireCollection(col, model.ActionDelete, h.deleteEntry(col)))
		mux.HandleFunc("POST "+base+"/{id}/publish",
			h.guard.RequireCollection(col, model.ActionModerate, h.publishEntry(col)))
	}
}

// ============================================================================
// 请求类型
// ============================================================================

type entryRequest struct {
	Slug    string         `json:"slug"`
	Title   string         `json:"title"`
	Summary string         `json:"summary"`
	Body    string         `json:"body"`
	Images  []string       `json:"images"`
	Details map[string]any `json:"details"`
}

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ============================================================================
// Handlers
// ============================================================================

func (h *Handler) listEntries(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.store.ListEntries(r.Context(), col)
		if err != nil {
			log.Printf("[catalog] ListEntries(%s) error: %v", col, err)
			writeError(w, http.StatusInternalServerError, "failed to list entries")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
	}
}

func (h *Handler) getEntry(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := h.store.GetEntry(r.Context(), col, r.PathValue("id"))
		if err != nil {
			log.Printf("[catalog] GetEntry(%s) error: %v", col, err)
			writeError(w, http.StatusInternalServerError, "failed to get entry")
			return
		}
		if entry == nil {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

// getEntryBySlug 前台页面按 slug 取条目（URL 用 slug 而非内部 ID）
func (h *Handler) getEntryBySlug(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := h.store.GetEntryBySlug(r.Context(), col, r.PathValue("slug"))
		if err != nil {
			log.Printf("[catalog] GetEntryBySlug(%s) error: %v", col, err)
			writeError(w, http.StatusInternalServerError, "failed to get entry")
			return
		}
		if entry == nil {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func (h *Handler) createEntry(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req entryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Title == "" || req.Slug == "" {
			writeError(w, http.StatusBadRequest, "title and slug are required")
			return
		}
		if !slugRegex.MatchString(req.Slug) {
			writeError(w, http.StatusBadRequest, "slug must be lowercase alphanumeric with hyphens")
			return
		}

		user := auth.UserFrom(r.Context())
		now := time.Now()
		entry := &model.CatalogEntry{
			ID:         generateID(idPrefix(col)),
			Collection: col,
			Slug:       req.Slug,
			Title:      req.Title,
			Summary:    req.Summary,
			Body:       req.Body,
			Status:     model.EntryStatusDraft,
			Images:     req.Images,
			Details:    req.Details,
			CreatedBy:  user.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if err := h.store.CreateEntry(r.Context(), entry); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				writeError(w, http.StatusConflict, "slug already exists in "+string(col))
				return
			}
			log.Printf("[catalog] CreateEntry(%s) error: %v", col, err)
			writeError(w, http.StatusInternalServerError, "failed to create entry")
			return
		}
		writeJSON(w, http.StatusCreated, entry)
	}
}

func (h *Handler) updateEntry(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := h.store.GetEntry(r.Context(), col, r.PathValue("id"))
		if err != nil {
			log.Printf("[catalog] GetEntry(%s) error: %v", col, err)
			writeError(w, http.StatusInternalServerError, "failed to get entry")
			return
		}
		if entry == nil {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}

		var req entryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Title != "" {
			entry.Title = req.Title
		}
		if req.Slug != "" {
			if !slugRegex.MatchString(req.Slug) {
				writeError(w, http.StatusBadRequest, "slug must be lowercase alphanumeric with hyphens")
				return
			}
			entry.Slug = req.Slug
		}
		entry.Summary = req.Summary
		entry.Body = req.Body
		if req.Images != nil {
			entry.Images = req.Images
		}
		if req.Details != nil {
			entry.Details = req.Details
		}

		if err := h.store.UpdateEntry(r.Context(), entry); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				writeError(w, http.StatusConflict, "slug already exists in "+string(col))
				return
			}
			log.Printf("[catalog] UpdateEntry(%s) error: %v", col, err)
			writeError(w, http.StatusInternalServerError, "failed to update entry")
			return
		}
		writeJSON(w, http.StatusOK, entry)
	}
}

func (h *Handler) deleteEntry(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.DeleteEntry(r.Context(), col, r.PathValue("id")); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "entry not found")
				return
			}
			log.Printf("[catalog] DeleteEntry(%s) error: %v", col, err)
			writeError(w, http.StatusInternalServerError, "failed to delete entry")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "entry deleted"})
	}
}

func (h *Handler) publishEntry(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.SetEntryStatus(r.Context(), col, r.PathValue("id"), model.EntryStatusPublished); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusNotFound, "entry not found")
				return
			}
			log.Printf("[catalog] SetEntryStatus(%s) error: %v", col, err)
			writeError(w, http.StatusInternalServerError, "failed to publish entry")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "entry published"})
	}
}

// idPrefix 集合 → ID 前缀（如 projects → prj）
func idPrefix(col model.Collection) string {
	switch col {
	case model.CollectionProjects:
		return "prj"
	case model.CollectionDevelopers:
		return "dev"
	case model.CollectionHotels:
		return "htl"
	case model.CollectionMalls:
		return "mal"
	case model.CollectionPlots:
		return "plt"
	case model.CollectionProperties:
		return "prp"
	case model.CollectionBlogs:
		return "blg"
	default:
		return "ent"
	}
}
