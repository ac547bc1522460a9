package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sei-platform/seibackend/config"
	"github.com/sei-platform/seibackend/database"
	"github.com/sei-platform/seibackend/handlers"
	"github.com/sei-platform/seibackend/logger"
	"github.com/sei-platform/seibackend/media"
	"github.com/sei-platform/seibackend/metrics"
	"github.com/sei-platform/seibackend/models"
	"github.com/sei-platform/seibackend/ocr"
	"github.com/sei-platform/seibackend/realtime"
	"github.com/sei-platform/seibackend/repository"
	"github.com/sei-platform/seibackend/server"
)

var testSecret = []byte("router-test-secret")

type fakeImages struct {
	mu      sync.Mutex
	thumbs  map[uint]string
	deleted []string
}

func (f *fakeImages) QueueThumbnail(id uint, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumbs[id] = path
	return true
}

func (f *fakeImages) QueueDelete(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, paths...)
}

type testEnv struct {
	t      *testing.T
	router http.Handler
	db     *database.DB
	images *fakeImages
	hub    *realtime.Hub
	tokens *handlers.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewNop()

	db, err := database.Open(config.DriverSQLite, filepath.Join(t.TempDir(), "api.db"), log)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrateModels(db.Gorm))
	t.Cleanup(func() { _ = db.Close() })

	store, err := media.NewLocalStorage(t.TempDir(), media.DefaultSubDirs(), log)
	require.NoError(t, err)

	cfg := config.Config{
		JWTSecret:               testSecret,
		JWTExpiration:           time.Hour,
		MaxUploadBytes:          5 << 20,
		KeywordLimit:            6,
		ActivityUpThreshold:     70,
		ActivityStableThreshold: 40,
		CORSAllowedOrigins:      []string{"http://localhost:5173"},
		RequestTimeout:          10 * time.Second,
	}
	env := &testEnv{
		t:      t,
		db:     db,
		images: &fakeImages{thumbs: map[uint]string{}},
		hub:    realtime.NewHub(log),
		tokens: handlers.NewTokenIssuer(testSecret, time.Hour),
	}
	env.router = server.NewRouter(server.Deps{
		Config:    cfg,
		DB:        db,
		Processor: media.NewProcessor(store, log),
		Images:    env.images,
		Hub:       env.hub,
		Metrics:   metrics.New(),
		OCR:       ocr.Noop{},
		Log:       log,
	})
	return env
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, token)
}

func (e *testEnv) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// user creates an account directly and returns it with a valid session token.
func (e *testEnv) user(email string, admin bool) (*models.User, string) {
	e.t.Helper()
	u := &models.User{Email: email, Nombre: email, IsAdmin: admin}
	require.NoError(e.t, u.SetPassword("contrasena-segura"))
	require.NoError(e.t, repository.NewGormUserRepository(e.db.Gorm).Create(u))
	token, _, err := e.tokens.Issue(u.ID)
	require.NoError(e.t, err)
	return u, token
}

// register submits a researcher registration for the token's user.
func (e *testEnv) register(token string, fields map[string]string) models.Researcher {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/api/registros", token, fields)
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	var r models.Researcher
	decode(e.t, rec, &r)
	return r
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) handlers.APIErrorResponse {
	t.Helper()
	var e handlers.APIErrorResponse
	decode(t, rec, &e)
	return e
}

func multipartRequest(t *testing.T, method, path string, fields map[string]string, fileField, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInstitutionCRUDRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.user("capturista@example.mx", false)
	_, adminToken := env.user("admin@example.mx", true)

	rec := env.do(http.MethodPost, "/api/instituciones", "", map[string]string{"nombre": "UAN", "tipo": "universidad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/instituciones", userToken, map[string]string{"nombre": "UAN"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	apiErr := errorOf(t, rec)
	assert.Equal(t, "Faltan campos obligatorios", apiErr.Error)
	assert.Equal(t, "tipo", apiErr.Details)

	rec = env.do(http.MethodPost, "/api/instituciones", userToken, map[string]string{
		"nombre":    "Universidad Autónoma de Nayarit",
		"tipo":      "universidad",
		"municipio": "",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Institution
	decode(t, rec, &created)
	assert.Equal(t, models.InstitutionPending, created.Estado)
	assert.Nil(t, created.Municipio, "blank optional fields are stored as null")

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/instituciones/%d", created.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.Institution
	decode(t, rec, &fetched)
	assert.Equal(t, "Universidad Autónoma de Nayarit", fetched.Nombre)
	assert.Equal(t, "universidad", fetched.Tipo)
	assert.Equal(t, "PENDIENTE", fetched.Estado)

	rec = env.do(http.MethodPost, "/api/instituciones", userToken, map[string]string{"nombre": "Universidad Autónoma de Nayarit", "tipo": "universidad"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Ya existe una institución con ese nombre", errorOf(t, rec).Error)

	rec = env.do(http.MethodGet, "/api/instituciones?estado=pendiente", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Institution
	decode(t, rec, &listed)
	require.Len(t, listed, 1)

	rec = env.do(http.MethodGet, "/api/instituciones?estado=archivada", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := fmt.Sprintf("/api/instituciones/%d", created.ID)
	rec = env.do(http.MethodPut, path, userToken, map[string]string{"estado": "APROBADA"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPut, path, adminToken, map[string]string{"estado": "aprobada", "siglas": "UAN"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Institution
	decode(t, rec, &updated)
	assert.Equal(t, models.InstitutionApproved, updated.Estado)
	require.NotNil(t, updated.Siglas)
	assert.Equal(t, "UAN", *updated.Siglas)

	rec = env.do(http.MethodPut, path, adminToken, map[string]string{"nombre": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodDelete, path, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Institución no encontrada", errorOf(t, rec).Error)

	rec = env.do(http.MethodGet, "/api/instituciones/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstitutionRFCValidation(t *testing.T) {
	env := newTestEnv(t)
	_, userToken := env.user("capturista@example.mx", false)
	_, adminToken := env.user("admin@example.mx", true)

	rec := env.do(http.MethodPost, "/api/instituciones", userToken, map[string]string{
		"nombre": "Instituto Tecnológico de Tepic",
		"tipo":   "instituto",
		"rfc":    "ABCDEFGHIJKLMNOPQRST",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "El RFC debe tener como máximo 13 caracteres", errorOf(t, rec).Error)

	rec = env.do(http.MethodGet, "/api/instituciones", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.Institution
	decode(t, rec, &listed)
	assert.Empty(t, listed)

	rec = env.do(http.MethodPost, "/api/instituciones", userToken, map[string]string{
		"nombre": "Instituto Tecnológico de Tepic",
		"tipo":   "instituto",
		"rfc":    " itt720101ab1 ",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Institution
	decode(t, rec, &created)
	require.NotNil(t, created.RFC)
	assert.Equal(t, "ITT720101AB1", *created.RFC)

	path := fmt.Sprintf("/api/instituciones/%d", created.ID)
	rec = env.do(http.MethodPut, path, adminToken, map[string]string{"rfc": "ITT720101AB1XYZ"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "El RFC debe tener como máximo 13 caracteres", errorOf(t, rec).Error)

	rec = env.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.Institution
	decode(t, rec, &fetched)
	assert.Equal(t, "ITT720101AB1", *fetched.RFC)
}

func TestInstitutionImageUploadAndMedia(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("capturista@example.mx", false)

	req := multipartRequest(t, http.MethodPost, "/api/instituciones",
		map[string]string{"nombre": "Instituto Tecnológico de Tepic", "tipo": "tecnologico"},
		"imagen", "logo.png", pngBytes(t))
	rec := env.send(req, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var inst models.Institution
	decode(t, rec, &inst)
	require.NotNil(t, inst.ImagenURL)
	assert.True(t, strings.HasSuffix(*inst.ImagenURL, ".jpg"))
	assert.Equal(t, *inst.ImagenURL, env.images.thumbs[inst.ID])

	rec = env.do(http.MethodGet, "/api/media/"+*inst.ImagenURL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("Cache-Control"))
	assert.NotZero(t, rec.Body.Len())

	rec = env.do(http.MethodGet, "/api/media/instituciones/no-existe.jpg", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = multipartRequest(t, http.MethodPost, "/api/instituciones",
		map[string]string{"nombre": "Otra", "tipo": "centro"},
		"imagen", "notas.txt", []byte("no es una imagen"))
	rec = env.send(req, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthSetupLoginAndSignup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/setup", "", map[string]string{"email": "root@example.mx", "nombre": "Root", "password": "corta"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/setup", "", map[string]string{"email": "Root@Example.mx", "nombre": "Root", "password": "contrasena-segura"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = env.do(http.MethodPost, "/api/setup", "", map[string]string{"email": "otro@example.mx", "nombre": "Otro", "password": "contrasena-segura"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "root@example.mx", "password": "equivocada"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Correo o contraseña incorrectos", errorOf(t, rec).Error)

	rec = env.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ROOT@example.mx", "password": "contrasena-segura"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login handlers.LoginResponse
	decode(t, rec, &login)
	require.NotEmpty(t, login.Token)
	assert.True(t, login.User.IsAdmin)

	rec = env.do(http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me handlers.MeResponse
	decode(t, rec, &me)
	assert.Equal(t, "root@example.mx", me.User.Email)
	assert.Nil(t, me.InvestigadorID)

	rec = env.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(http.MethodGet, "/api/auth/me", "no-es-un-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/auth/registro", "", map[string]string{"email": "nueva@example.mx", "nombre": "Nueva", "password": "contrasena-segura"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var signedUp models.User
	decode(t, rec, &signedUp)
	assert.False(t, signedUp.IsAdmin)

	rec = env.do(http.MethodPost, "/api/auth/registro", "", map[string]string{"email": "nueva@example.mx", "nombre": "Dup", "password": "contrasena-segura"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Ya existe una cuenta con ese correo electrónico", errorOf(t, rec).Error)

	rec = env.do(http.MethodPost, "/api/auth/registro", "", map[string]string{"email": "sin-arroba", "password": "contrasena-segura"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistrationOwnershipAndValidation(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.user("owner@example.mx", false)
	_, otherToken := env.user("other@example.mx", false)
	_, adminToken := env.user("admin@example.mx", true)

	rec := env.do(http.MethodPost, "/api/registros", ownerToken, map[string]string{"nombre_completo": "María López"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "correo", errorOf(t, rec).Details)

	rec = env.do(http.MethodPost, "/api/registros", ownerToken, map[string]string{
		"nombre_completo": "María López", "correo": "maria@example.mx", "nivel_sni": "nivel_9",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	reg := env.register(ownerToken, map[string]string{
		"nombre_completo": "María López",
		"correo":          "Maria@Example.MX",
		"rfc":             "lohm850101ab1",
		"area":            "Biotecnología",
		"nivel_sni":       "Nivel_1",
	})
	assert.Equal(t, "maria@example.mx", reg.Correo)
	require.NotNil(t, reg.RFC)
	assert.Equal(t, "LOHM850101AB1", *reg.RFC)
	require.NotNil(t, reg.NivelSNI)
	assert.Equal(t, "nivel_1", *reg.NivelSNI)
	assert.True(t, reg.Activo)

	rec = env.do(http.MethodPost, "/api/registros", ownerToken, map[string]string{"nombre_completo": "María López", "correo": "maria2@example.mx"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "El usuario ya cuenta con un registro de investigador", errorOf(t, rec).Error)

	path := fmt.Sprintf("/api/registros/%d", reg.ID)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, path, otherToken, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, path, ownerToken, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, path, adminToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/registros", otherToken, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/registros", adminToken, nil).Code)

	rec = env.do(http.MethodPut, path, ownerToken, map[string]string{"rfc": "LOHM850101AB1XYZ"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "El RFC debe tener como máximo 13 caracteres", errorOf(t, rec).Error)

	rec = env.do(http.MethodPut, path, otherToken, map[string]string{"area": "Química"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPut, path, ownerToken, map[string]string{"area": "Química", "user_id": "999"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated models.Researcher
	decode(t, rec, &updated)
	require.NotNil(t, updated.Area)
	assert.Equal(t, "Química", *updated.Area)
	require.NotNil(t, updated.UserID)
	assert.Equal(t, *reg.UserID, *updated.UserID, "user_id is not writable")

	rec = env.do(http.MethodGet, fmt.Sprintf("/api/investigadores/%d", reg.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "maria@example.mx")
	assert.NotContains(t, rec.Body.String(), "LOHM850101AB1")

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, path, ownerToken, nil).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodDelete, path, adminToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, fmt.Sprintf("/api/investigadores/%d", reg.ID), "", nil).Code)

	rec = env.do(http.MethodGet, path, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deactivated models.Researcher
	decode(t, rec, &deactivated)
	assert.False(t, deactivated.Activo)
}

func TestRegistrationCVAndOCR(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user("owner@example.mx", false)
	reg := env.register(token, map[string]string{"nombre_completo": "Juan Ruiz", "correo": "juan@example.mx"})
	path := fmt.Sprintf("/api/registros/%d/cv", reg.ID)

	rec := env.send(multipartRequest(t, http.MethodPost, path, nil, "cv", "cv.docx", []byte("PK\x03\x04 not a pdf")), token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "El CV debe ser un archivo PDF", errorOf(t, rec).Error)

	rec = env.send(multipartRequest(t, http.MethodPost, path, nil, "cv", "cv.pdf", []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n")), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first struct {
		CVURL string `json:"cv_url"`
	}
	decode(t, rec, &first)
	assert.True(t, strings.HasSuffix(first.CVURL, ".pdf"))

	rec = env.send(multipartRequest(t, http.MethodPost, path, nil, "cv", "cv2.pdf", []byte("%PDF-1.7\n")), token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, env.images.deleted, first.CVURL, "the replaced CV is scheduled for deletion")

	doc := "Nombre completo: Juan Ruiz Castañeda\nCURP: RUCJ800101HNTZSN05\nCorreo: JUAN.RUIZ@Example.mx\nTel. (311) 555-0101\n"
	rec = env.send(multipartRequest(t, http.MethodPost, "/api/registros/ocr", nil, "documento", "ine.txt", []byte(doc)), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var fields ocr.Fields
	decode(t, rec, &fields)
	assert.Equal(t, "Juan Ruiz Castañeda", fields.NombreCompleto)
	assert.Equal(t, "RUCJ800101HNTZSN05", fields.CURP)
	assert.Equal(t, "juan.ruiz@example.mx", fields.Correo)
	assert.Equal(t, "3115550101", fields.Telefono)

	rec = env.send(multipartRequest(t, http.MethodPost, "/api/registros/ocr", nil, "", "", nil), token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectionsAndMessages(t *testing.T) {
	env := newTestEnv(t)
	_, aToken := env.user("a@example.mx", false)
	_, bToken := env.user("b@example.mx", false)
	_, cToken := env.user("c@example.mx", false)
	a := env.register(aToken, map[string]string{"nombre_completo": "Ana Medina", "correo": "ana@example.mx"})
	b := env.register(bToken, map[string]string{"nombre_completo": "Beto Salas", "correo": "beto@example.mx"})

	rec := env.do(http.MethodGet, "/api/conexiones", cToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Debe completar su registro como investigador", errorOf(t, rec).Error)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/conexiones", aToken, map[string]interface{}{"destinatario_id": a.ID}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/conexiones", aToken, map[string]interface{}{"destinatario_id": 9999}).Code)

	rec = env.do(http.MethodPost, "/api/conexiones", aToken, map[string]interface{}{"destinatario_id": b.ID, "mensaje": "¿Colaboramos?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var conn models.Connection
	decode(t, rec, &conn)
	assert.Equal(t, models.ConnectionPending, conn.Estado)

	rec = env.do(http.MethodPost, "/api/conexiones", bToken, map[string]interface{}{"destinatario_id": a.ID})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Ya existe una solicitud de conexión entre estos investigadores", errorOf(t, rec).Error)

	connPath := fmt.Sprintf("/api/conexiones/%d", conn.ID)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPut, connPath, aToken, map[string]string{"estado": "aceptada"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPut, connPath, bToken, map[string]string{"estado": "pendiente"}).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodPut, connPath, bToken, map[string]string{"estado": "Aceptada"}).Code)
	assert.Equal(t, http.StatusConflict, env.do(http.MethodPut, connPath, bToken, map[string]string{"estado": "rechazada"}).Code)

	rec = env.do(http.MethodGet, "/api/conexiones?estado=aceptada", aToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conns []models.Connection
	decode(t, rec, &conns)
	require.Len(t, conns, 1)
	require.NotNil(t, conns[0].Destinatario)
	assert.Equal(t, "Beto Salas", conns[0].Destinatario.NombreCompleto)

	rec = env.do(http.MethodGet, "/api/conexiones?estado=pendiente", bToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = env.do(http.MethodPost, "/api/mensajes", aToken, map[string]interface{}{"destinatario_id": b.ID, "asunto": "Proyecto", "contenido": "  Hola Beto  "})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var msg models.Message
	decode(t, rec, &msg)
	assert.Equal(t, "Hola Beto", msg.Contenido)
	assert.False(t, msg.Leido)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/mensajes", aToken, map[string]interface{}{"destinatario_id": b.ID, "contenido": " "}).Code)

	var inbox struct {
		Mensajes []models.Message `json:"mensajes"`
		NoLeidos int64            `json:"no_leidos"`
	}
	rec = env.do(http.MethodGet, fmt.Sprintf("/api/mensajes?con=%d", a.ID), bToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &inbox)
	require.Len(t, inbox.Mensajes, 1)
	assert.EqualValues(t, 1, inbox.NoLeidos)

	readPath := fmt.Sprintf("/api/mensajes/%d/leido", msg.ID)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPut, readPath, aToken, nil).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodPut, readPath, bToken, nil).Code)

	rec = env.do(http.MethodGet, "/api/mensajes", bToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &inbox)
	assert.EqualValues(t, 0, inbox.NoLeidos)

	msgPath := fmt.Sprintf("/api/mensajes/%d", msg.ID)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodDelete, msgPath, cToken, nil).Code)
	require.Equal(t, http.StatusOK, env.do(http.MethodDelete, msgPath, bToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, msgPath, bToken, nil).Code)

	require.Equal(t, http.StatusOK, env.do(http.MethodDelete, connPath, aToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, connPath, bToken, nil).Code)
}

func TestRealtimeMessageDelivery(t *testing.T) {
	env := newTestEnv(t)
	_, aToken := env.user("a@example.mx", false)
	_, bToken := env.user("b@example.mx", false)
	env.register(aToken, map[string]string{"nombre_completo": "Ana Medina", "correo": "ana@example.mx"})
	b := env.register(bToken, map[string]string{"nombre_completo": "Beto Salas", "correo": "beto@example.mx"})

	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		env.hub.Run(ctx)
		close(hubDone)
	}()
	srv := httptest.NewServer(env.router)
	defer func() {
		cancel()
		<-hubDone
		srv.Close()
	}()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+bToken, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.hub.ClientCount(b.ID) == 1 }, 5*time.Second, 10*time.Millisecond)

	rec := env.do(http.MethodPost, "/api/mensajes", aToken, map[string]interface{}{"destinatario_id": b.ID, "contenido": "¿Tienes un momento?"})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev realtime.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, realtime.EventMessage, ev.Type)
	assert.NotZero(t, ev.Timestamp)
}

func seedAreaResearchers(t *testing.T, store *database.Store) {
	t.Helper()
	rows := []map[string]interface{}{
		{
			"nombre_completo":         "María López Hernández",
			"correo":                  "maria@example.mx",
			"institucion":             "Universidad Autónoma de Nayarit",
			"area":                    "Biotecnología",
			"proyectos_investigacion": "Enzimas termoestables de origen marino\nBioprocesos para residuos agroindustriales",
			"articulos":               "López M., Ruiz J. (2021) Enzimas en biorreactores\nLópez M. (2023) Residuos de caña",
		},
		{
			"nombre_completo":         "Juan Ruiz Castañeda",
			"correo":                  "juan@example.mx",
			"institucion":             "Instituto Tecnológico de Tepic",
			"area":                    "Biotecnología",
			"proyectos_investigacion": "Escalamiento de fermentadores",
		},
		{
			"nombre_completo": "Ana Sofía Medina",
			"correo":          "ana@example.mx",
			"institucion":     "Universidad Autónoma de Nayarit",
			"area":            "Ciencias Sociales",
			"articulos":       "Medina A. (2022) Remesas y consumo",
		},
	}
	for _, fields := range rows {
		_, err := store.CreateResearcher(context.Background(), nil, fields)
		require.NoError(t, err)
	}
}

func TestCamposSearchAndDirectory(t *testing.T) {
	env := newTestEnv(t)
	seedAreaResearchers(t, env.db.Store())

	rec := env.do(http.MethodGet, "/api/campos?orden=investigadores&direccion=desc", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Campos []struct {
			Nombre         string `json:"nombre"`
			Slug           string `json:"slug"`
			Investigadores int    `json:"investigadores"`
		} `json:"campos"`
		Estadisticas map[string]int `json:"estadisticas"`
		Error        string         `json:"error"`
	}
	decode(t, rec, &listing)
	assert.Empty(t, listing.Error)
	require.Len(t, listing.Campos, 2)
	assert.Equal(t, "Biotecnología", listing.Campos[0].Nombre)
	assert.Equal(t, 2, listing.Campos[0].Investigadores)
	assert.Equal(t, 3, listing.Estadisticas["total_investigadores"])

	rec = env.do(http.MethodGet, "/api/campos/"+listing.Campos[0].Slug, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Nombre              string            `json:"nombre"`
		ListaInvestigadores []json.RawMessage `json:"lista_investigadores"`
		ListaInstituciones  []string          `json:"lista_instituciones"`
	}
	decode(t, rec, &detail)
	assert.Equal(t, "Biotecnología", detail.Nombre)
	assert.Len(t, detail.ListaInvestigadores, 2)
	assert.Len(t, detail.ListaInstituciones, 2)

	rec = env.do(http.MethodGet, "/api/campos/astrofisica", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Campo de investigación no encontrado", errorOf(t, rec).Error)

	rec = env.do(http.MethodGet, "/api/search?q=ENZIMAS&type=projects", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Investigadores []json.RawMessage `json:"investigadores"`
		Proyectos      []struct {
			Titulo string `json:"titulo"`
		} `json:"proyectos"`
		Total int `json:"total"`
	}
	decode(t, rec, &res)
	require.NotEmpty(t, res.Proyectos)
	assert.Contains(t, res.Proyectos[0].Titulo, "Enzimas")
	assert.Empty(t, res.Investigadores)

	rec = env.do(http.MethodGet, "/api/search?q=", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"investigadores":[],"proyectos":[],"total":0}`, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/publicaciones?tipo=articulo", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pubs struct {
		Publicaciones []struct {
			ID string `json:"id"`
		} `json:"publicaciones"`
		Total int `json:"total"`
	}
	decode(t, rec, &pubs)
	assert.Equal(t, 3, pubs.Total)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/publicaciones?tipo=tesis", "", nil).Code)

	rec = env.do(http.MethodGet, "/api/publicaciones/"+pubs.Publicaciones[0].ID+"/autores", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/publicaciones/nope/autores", "", nil).Code)

	rec = env.do(http.MethodGet, "/api/estadisticas/instituciones", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Total int `json:"total"`
	}
	decode(t, rec, &stats)
	assert.Equal(t, 2, stats.Total)

	rec = env.do(http.MethodGet, "/api/investigadores?search=ruiz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dir struct {
		Investigadores []struct {
			Nombre string `json:"nombre"`
		} `json:"investigadores"`
	}
	decode(t, rec, &dir)
	require.Len(t, dir.Investigadores, 1)
	assert.Equal(t, "Juan Ruiz Castañeda", dir.Investigadores[0].Nombre)
	assert.NotContains(t, rec.Body.String(), "juan@example.mx")

	rec = env.do(http.MethodGet, "/api/clasificaciones", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nivel_1")
}

func TestReadEndpointsDegradeWhenStoreFails(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.db.Close())

	for _, path := range []string{
		"/api/campos",
		"/api/campos/biotecnologia",
		"/api/search?q=enzimas",
		"/api/publicaciones",
		"/api/investigadores",
		"/api/estadisticas/instituciones",
	} {
		t.Run(path, func(t *testing.T) {
			rec := env.do(http.MethodGet, path, "", nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var body map[string]interface{}
			decode(t, rec, &body)
			assert.NotEmpty(t, body["error"])
		})
	}

	rec := env.do(http.MethodGet, "/api/instituciones", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	apiErr := errorOf(t, rec)
	assert.Equal(t, "Error al obtener instituciones", apiErr.Error)
	assert.NotContains(t, apiErr.Details, "sql")
}

func TestMetricsAndCORS(t *testing.T) {
	env := newTestEnv(t)
	env.do(http.MethodGet, "/api/clasificaciones", "", nil)

	rec := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sei_http_requests_total{method="GET",route="/api/clasificaciones",status="200"} 1`)

	req := httptest.NewRequest(http.MethodOptions, "/api/instituciones", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = env.send(req, "")
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
