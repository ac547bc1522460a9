package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

const multipartMemory = 8 << 20

var errUnsupportedValue = errors.New("unsupported value")

// formBody is a decoded create/update payload: the scalar fields plus an optional
// uploaded file.
type formBody struct {
	Fields map[string]interface{}
	File   multipart.File
	Header *multipart.FileHeader
}

func (b *formBody) Close() {
	if b.File != nil {
		_ = b.File.Close()
	}
}

func (b *formBody) String(key string) string {
	s, _ := b.Fields[key].(string)
	return strings.TrimSpace(s)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readFormBody accepts a JSON object or a multipart form. For multipart requests the
// file under fileField, if present, is returned open.
func readFormBody(w http.ResponseWriter, r *http.Request, maxBytes int64, fileField string) (*formBody, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	body := &formBody{Fields: map[string]interface{}{}}

	if isMultipart(r) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, fmt.Errorf("formulario inválido: %w", err)
		}
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				body.Fields[key] = values[0]
			}
		}
		if fileField != "" {
			file, header, err := r.FormFile(fileField)
			switch {
			case err == nil:
				body.File, body.Header = file, header
			case !errors.Is(err, http.ErrMissingFile):
				return nil, fmt.Errorf("archivo inválido: %w", err)
			}
		}
		return body, nil
	}

	raw := map[string]interface{}{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("el cuerpo de la solicitud está vacío")
		}
		return nil, fmt.Errorf("JSON inválido: %w", err)
	}
	for key, v := range raw {
		s, err := scalarString(v)
		if err != nil {
			return nil, fmt.Errorf("valor inválido para '%s'", key)
		}
		body.Fields[key] = s
	}
	return body, nil
}

// scalarString flattens JSON scalars to the text columns they are stored in.
func scalarString(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return nil, errUnsupportedValue
}

// idParam parses a positive integer URL parameter.
func idParam(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// missingFields lists the required keys that are absent or blank.
func missingFields(body *formBody, required ...string) []string {
	var missing []string
	for _, key := range required {
		if body.String(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
