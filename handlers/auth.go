package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/repository"
)

const tokenIssuer = "seibackend"

// TokenIssuer signs and verifies the HS256 session tokens. The subject is the user id.
type TokenIssuer struct {
	secret     []byte
	expiration time.Duration
}

func NewTokenIssuer(secret []byte, expiration time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, expiration: expiration}
}

func (ti *TokenIssuer) Issue(userID uint) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ti.expiration)
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse validates the token and returns the user id it was issued for.
func (ti *TokenIssuer) Parse(tokenString string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ti.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid subject '%s' in token", claims.Subject)
	}
	return uint(id), nil
}

type AuthHandler struct {
	Users  repository.UserRepository
	Store  *database.Store
	Tokens *TokenIssuer
	Log    *logger.Logger
}

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// MeResponse is the authenticated user plus the id of their researcher registration, if any.
type MeResponse struct {
	User           models.User `json:"user"`
	InvestigadorID *uint       `json:"investigador_id"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido", err.Error())
		return
	}
	if strings.TrimSpace(payload.Email) == "" || payload.Password == "" {
		WriteAPIError(w, http.StatusBadRequest, "El correo y la contraseña son obligatorios", "")
		return
	}

	user, err := h.Users.GetByEmail(payload.Email)
	if err != nil || !user.CheckPassword(payload.Password) {
		if err != nil && !isNotFound(err) {
			h.Log.Error("login lookup failed", "error", err)
		}
		WriteAPIError(w, http.StatusUnauthorized, "Correo o contraseña incorrectos", "")
		return
	}

	token, expiresAt, err := h.Tokens.Issue(user.ID)
	if err != nil {
		h.Log.Error("failed to issue token", "user_id", user.ID, "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "No se pudo iniciar sesión", "")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: *user, ExpiresAt: expiresAt})
}

// Signup creates a regular account. The researcher registration is a separate step.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload AccountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido", err.Error())
		return
	}
	if msg := payload.validate(); msg != "" {
		WriteAPIError(w, http.StatusBadRequest, msg, "")
		return
	}

	user := &models.User{Email: payload.Email, Nombre: strings.TrimSpace(payload.Nombre)}
	if err := user.SetPassword(payload.Password); err != nil {
		h.Log.Error("failed to hash password", "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "No se pudo crear la cuenta", "")
		return
	}
	if err := h.Users.Create(user); err != nil {
		writeStoreError(w, h.Log, err, "", "No se pudo crear la cuenta")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// CurrentUser must run behind AuthMiddleware.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		WriteAPIError(w, http.StatusUnauthorized, "No autenticado", "")
		return
	}
	resp := MeResponse{User: *user}
	researcher, err := h.Store.GetResearcherByUserID(r.Context(), user.ID)
	switch {
	case err == nil:
		resp.InvestigadorID = &researcher.ID
	case !isNotFound(err):
		h.Log.Warn("failed to look up researcher for user", "user_id", user.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}
