package server

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"estate-admin/internal/shared/model"
)

// media.go 图文素材上传/下载
//
// 对象键格式：media/<collection>/<随机id><扩展名>。
// 上传要求对应集合的 edit 权限，删除要求 delete，读取只要求 view。
// 读取有两条路径：临时签名链接（浏览器可直达 MinIO 时），
// 以及经服务端转发的 content 路径（MinIO 只在内网可达时）。
// 未配置 MinIO 时素材接口统一返回 503，其余功能不受影响。

const (
	maxUploadBytes = 32 << 20 // 单个素材上限 32 MiB
	presignExpiry  = 15 * time.Minute
)

// registerMediaRoutes 为每个内容集合注册素材路由
func (h *Handler) registerMediaRoutes(mux *http.ServeMux) {
	for _, col := range model.ContentCollections {
		col := col
		base := "/api/v1/media/" + string(col)

		mux.HandleFunc("POST "+base,
			h.guard.RequireCollection(col, model.ActionEdit, h.uploadMedia(col)))
		mux.HandleFunc("GET "+base+"/{key}",
			h.guard.RequireCollection(col, model.ActionView, h.mediaURL(col)))
		mux.HandleFunc("GET "+base+"/{key}/content",
			h.guard.RequireCollection(col, model.ActionView, h.mediaContent(col)))
		mux.HandleFunc("DELETE "+base+"/{key}",
			h.guard.RequireCollection(col, model.ActionDelete, h.deleteMedia(col)))
	}
}

func (h *Handler) mediaUnavailable(w http.ResponseWriter) bool {
	if h.media == nil {
		writeError(w, http.StatusServiceUnavailable, "media storage is not configured")
		return true
	}
	return false
}

// uploadMedia multipart 表单上传，字段名 file
func (h *Handler) uploadMedia(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.mediaUnavailable(w) {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		ext := strings.ToLower(path.Ext(header.Filename))
		switch ext {
		case ".jpg", ".jpeg", ".png", ".webp", ".gif", ".svg", ".pdf":
		default:
			writeError(w, http.StatusBadRequest, "unsupported file type: "+ext)
			return
		}

		key := fmt.Sprintf("media/%s/%s%s", col, generateID("obj"), ext)
		contentType := header.Header.Get("Content-Type")
		if err := h.media.Upload(r.Context(), key, file, header.Size, contentType); err != nil {
			log.Printf("[media] Upload error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to store media")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"key":  key,
			"size": header.Size,
		})
	}
}

// mediaURL 生成临时下载链接
func (h *Handler) mediaURL(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.mediaUnavailable(w) {
			return
		}

		key := fmt.Sprintf("media/%s/%s", col, r.PathValue("key"))
		exists, err := h.media.Exists(r.Context(), key)
		if err != nil {
			log.Printf("[media] Exists error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to check media")
			return
		}
		if !exists {
			writeError(w, http.StatusNotFound, "media not found")
			return
		}

		u, err := h.media.PresignedGet(r.Context(), key, presignExpiry)
		if err != nil {
			log.Printf("[media] PresignedGet error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to sign url")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"url":        u,
			"expires_in": int(presignExpiry.Seconds()),
		})
	}
}

// mediaContent 经服务端转发素材内容
func (h *Handler) mediaContent(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.mediaUnavailable(w) {
			return
		}

		key := fmt.Sprintf("media/%s/%s", col, r.PathValue("key"))
		obj, err := h.media.Download(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusNotFound, "media not found")
			return
		}
		defer obj.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := io.Copy(w, obj); err != nil {
			log.Printf("[media] stream %s error: %v", key, err)
		}
	}
}

// deleteMedia 删除素材对象
func (h *Handler) deleteMedia(col model.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.mediaUnavailable(w) {
			return
		}

		key := fmt.Sprintf("media/%s/%s", col, r.PathValue("key"))
		exists, err := h.media.Exists(r.Context(), key)
		if err != nil {
			log.Printf("[media] Exists error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to check media")
			return
		}
		if !exists {
			writeError(w, http.StatusNotFound, "media not found")
			return
		}

		if err := h.media.Delete(r.Context(), key); err != nil {
			log.Printf("[media] Delete error: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to delete media")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "media deleted"})
	}
}
