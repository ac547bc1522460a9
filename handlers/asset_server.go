package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/media"
)

const assetCacheDuration = 24 * time.Hour

// AssetServer serves stored images, thumbnails and CVs mounted at a wildcard route.
// Stores that can presign (S3) answer with a redirect; files on disk are streamed.
func AssetServer(store media.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if relativePath == "" || strings.Contains(relativePath, "..") {
			WriteAPIError(w, http.StatusBadRequest, "Ruta de archivo inválida", "")
			return
		}

		url, err := store.PresignURL(r.Context(), relativePath)
		if err == nil {
			http.Redirect(w, r, url, http.StatusTemporaryRedirect)
			return
		}
		if !errors.Is(err, media.ErrUnsupported) {
			log.Error("failed to presign asset", "path", relativePath, "error", err)
			WriteAPIError(w, http.StatusInternalServerError, "No se pudo obtener el archivo", "")
			return
		}

		rc, info, err := store.Get(r.Context(), relativePath)
		if err != nil {
			if errors.Is(err, media.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			log.Warn("asset access rejected", "path", relativePath, "error", err)
			WriteAPIError(w, http.StatusForbidden, "Acceso denegado", "")
			return
		}
		defer rc.Close()

		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(assetCacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(assetCacheDuration).Format(http.TimeFormat))
		if info.ContentType != "" {
			w.Header().Set("Content-Type", info.ContentType)
		}

		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, path.Base(relativePath), info.ModTime, rs)
			return
		}
		if info.Size > 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		}
		if _, err := io.Copy(w, rc); err != nil {
			log.Debug("asset stream interrupted", "path", relativePath, "error", err)
		}
	}
}
