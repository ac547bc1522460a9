package database

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ConstraintError is a store error that can be shown to the user: it carries the HTTP
// status to answer with and an actionable Spanish message.
type ConstraintError struct {
	Status  int
	Message string
	Err     error
}

func (e *ConstraintError) Error() string { return e.Message + ": " + e.Err.Error() }
func (e *ConstraintError) Unwrap() error { return e.Err }

var uniqueMessages = []struct {
	column  string
	message string
}{
	{"rfc", "Ya existe un registro con ese RFC"},
	{"curp", "Ya existe un registro con esa CURP"},
	{"correo", "Ya existe un registro con ese correo electrónico"},
	{"email", "Ya existe una cuenta con ese correo electrónico"},
	{"user_id", "El usuario ya cuenta con un registro de investigador"},
	{"solicitante_id", "Ya existe una solicitud de conexión entre estos investigadores"},
	{"conexion", "Ya existe una solicitud de conexión entre estos investigadores"},
	{"nombre", "Ya existe una institución con ese nombre"},
}

// TranslateError turns sqlite and postgres constraint violations into a
// *ConstraintError. Any other error is returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return &ConstraintError{Status: http.StatusConflict, Message: uniqueMessage(pgErr.ConstraintName + " " + pgErr.Detail), Err: err}
		case "22001":
			return &ConstraintError{Status: http.StatusBadRequest, Message: lengthMessage(pgErr.Message), Err: err}
		case "23502":
			return &ConstraintError{Status: http.StatusBadRequest, Message: "Falta el campo obligatorio " + pgErr.ColumnName, Err: err}
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &ConstraintError{Status: http.StatusConflict, Message: uniqueMessage(liteErr.Error()), Err: err}
		case sqlite3.ErrConstraintNotNull:
			return &ConstraintError{Status: http.StatusBadRequest, Message: "Falta un campo obligatorio", Err: err}
		}
	}
	return err
}

func uniqueMessage(detail string) string {
	detail = strings.ToLower(detail)
	for _, m := range uniqueMessages {
		if strings.Contains(detail, m.column) {
			return m.message
		}
	}
	return "El registro ya existe"
}

func lengthMessage(detail string) string {
	switch {
	case strings.Contains(detail, "(13)"):
		return "El RFC debe tener como máximo 13 caracteres"
	case strings.Contains(detail, "(18)"):
		return "La CURP debe tener como máximo 18 caracteres"
	}
	return "Uno de los campos excede la longitud permitida"
}
