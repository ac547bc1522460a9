package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFormBody_JSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nombre":"UAN","anio":2024,"activo":true,"siglas":null}`))
	r.Header.Set("Content-Type", "application/json")
	body, err := readFormBody(httptest.NewRecorder(), r, 1<<20, "imagen")
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "UAN", body.String("nombre"))
	assert.Equal(t, "2024", body.Fields["anio"])
	assert.Equal(t, "true", body.Fields["activo"])
	assert.Nil(t, body.Fields["siglas"])
	assert.Nil(t, body.File)
	assert.Equal(t, []string{"tipo"}, missingFields(body, "nombre", "tipo"))
}

func TestReadFormBody_Rejects(t *testing.T) {
	for name, payload := range map[string]string{
		"empty":  "",
		"nested": `{"nombre":{"a":1}}`,
		"broken": `{"nombre":`,
	} {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
			_, err := readFormBody(httptest.NewRecorder(), r, 1<<20, "")
			assert.Error(t, err)
		})
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nombre":"`+strings.Repeat("x", 200)+`"}`))
	_, err := readFormBody(httptest.NewRecorder(), r, 64, "")
	assert.Error(t, err, "body over the limit")
}

func TestReadFormBody_Multipart(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("nombre", "Instituto"))
	fw, err := mw.CreateFormFile("imagen", "logo.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	body, err := readFormBody(httptest.NewRecorder(), r, 1<<20, "imagen")
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "Instituto", body.String("nombre"))
	require.NotNil(t, body.File)
	assert.Equal(t, "logo.png", body.Header.Filename)
}

func TestIDParam(t *testing.T) {
	withParam := func(v string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", v)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	id, ok := idParam(withParam("12"), "id")
	assert.True(t, ok)
	assert.Equal(t, uint(12), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, ok := idParam(withParam(bad), "id")
		assert.False(t, ok, bad)
	}
}
