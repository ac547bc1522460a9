package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/repository"
)

const minPasswordLength = 8

var errSetupCompleted = errors.New("setup already completed")

type SetupHandler struct {
	DB  *gorm.DB
	Log *logger.Logger
}

type AccountPayload struct {
	Email    string `json:"email"`
	Nombre   string `json:"nombre"`
	Password string `json:"password"`
}

func (p AccountPayload) validate() string {
	email := strings.TrimSpace(p.Email)
	if email == "" || p.Password == "" {
		return "El correo y la contraseña son obligatorios"
	}
	if !strings.Contains(email, "@") {
		return "El correo electrónico no es válido"
	}
	if len(p.Password) < minPasswordLength {
		return fmt.Sprintf("La contraseña debe tener al menos %d caracteres", minPasswordLength)
	}
	return ""
}

// EnsureAdmin creates an administrator account for email unless one exists, and
// promotes an existing account otherwise. Safe to run repeatedly. It reports whether
// an account was created.
func EnsureAdmin(users repository.UserRepository, email, nombre, password string) (bool, error) {
	existing, err := users.GetByEmail(email)
	if err == nil {
		if existing.IsAdmin {
			return false, nil
		}
		existing.IsAdmin = true
		if err := users.Update(existing); err != nil {
			return false, fmt.Errorf("failed to promote '%s' to admin: %w", email, err)
		}
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to look up '%s': %w", email, err)
	}

	admin := &models.User{Email: email, Nombre: nombre, IsAdmin: true, Verificado: true}
	if err := admin.SetPassword(password); err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := users.Create(admin); err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}
	return true, nil
}

// CreateFirstAdmin creates the initial administrator. It only works while no account
// exists.
func (h *SetupHandler) CreateFirstAdmin(w http.ResponseWriter, r *http.Request) {
	var payload AccountPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "Cuerpo de la solicitud inválido", err.Error())
		return
	}
	if msg := payload.validate(); msg != "" {
		WriteAPIError(w, http.StatusBadRequest, msg, "")
		return
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count existing users in transaction: %w", err)
		}
		if count > 0 {
			return errSetupCompleted
		}
		created, err := EnsureAdmin(repository.NewGormUserRepository(tx), payload.Email, payload.Nombre, payload.Password)
		if err != nil {
			return err
		}
		if !created {
			return errSetupCompleted
		}
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, errSetupCompleted) {
			WriteAPIError(w, http.StatusForbidden, "La configuración inicial ya fue completada", "")
			return
		}
		h.Log.Error("failed to create first admin", "error", txErr)
		WriteAPIError(w, http.StatusInternalServerError, "No se pudo crear el administrador", "")
		return
	}
	h.Log.Info("initial admin user created", "email", strings.ToLower(strings.TrimSpace(payload.Email)))
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Administrador creado. Inicie sesión para continuar."})
}
