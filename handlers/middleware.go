package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/repository"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	// UserContextKey is the key used to store the user object in the request context.
	UserContextKey ContextKey = "user"
)

// UserFromContext returns the user AuthMiddleware stored, or nil.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

func bearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	// browsers cannot set headers on websocket upgrades
	return r.URL.Query().Get("token")
}

// AuthMiddleware verifies the session token and puts the user in the request context.
func AuthMiddleware(users repository.UserRepository, tokens *TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				WriteAPIError(w, http.StatusUnauthorized, "Se requiere autenticación", "")
				return
			}
			userID, err := tokens.Parse(tokenString)
			if err != nil {
				WriteAPIError(w, http.StatusUnauthorized, "Token inválido o expirado", "")
				return
			}
			user, err := users.GetByID(userID)
			if err != nil {
				WriteAPIError(w, http.StatusUnauthorized, "Usuario no encontrado", "")
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			WriteAPIError(w, http.StatusUnauthorized, "Se requiere autenticación", "")
			return
		}
		if !user.IsAdmin {
			WriteAPIError(w, http.StatusForbidden, "Se requieren permisos de administrador", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestLogger writes one structured line per request.
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// callerResearcher loads the researcher registration of the authenticated user. It
// writes the error response itself and returns ok=false when there is none.
func callerResearcher(w http.ResponseWriter, r *http.Request, store *database.Store, log *logger.Logger) (models.Researcher, bool) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, "Se requiere autenticación", "")
		return models.Researcher{}, false
	}
	researcher, err := store.GetResearcherByUserID(r.Context(), user.ID)
	if err != nil {
		if isNotFound(err) {
			WriteAPIError(w, http.StatusForbidden, "Debe completar su registro como investigador", "")
		} else {
			log.Error("failed to load caller researcher", "user_id", user.ID, "error", err)
			WriteAPIError(w, http.StatusInternalServerError, "No se pudo verificar el registro", "")
		}
		return models.Researcher{}, false
	}
	return researcher, true
}
