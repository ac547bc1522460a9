package ocr

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

// Fields are the registration values recognised in a scanned document. Every field is
// best effort and may be empty.
type Fields struct {
	NombreCompleto string `json:"nombre_completo,omitempty"`
	Correo         string `json:"correo,omitempty"`
	CURP           string `json:"curp,omitempty"`
	RFC            string `json:"rfc,omitempty"`
	Telefono       string `json:"telefono,omitempty"`
	Texto          string `json:"texto"`
}

// Extractor reads text out of an uploaded document and parses registration fields from it.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (Fields, error)
}

// Noop is the extractor used when no OCR backend is configured. Plain-text uploads are
// still parsed; anything else yields empty fields.
type Noop struct{}

func (Noop) Extract(_ context.Context, data []byte, mimeType string) (Fields, error) {
	if strings.HasPrefix(mimeType, "text/") {
		return ParseFields(string(data)), nil
	}
	return Fields{}, nil
}

var (
	curpRe  = regexp.MustCompile(`\b[A-Z][AEIOUX][A-Z]{2}\d{6}[HM][A-Z]{5}[A-Z0-9]\d\b`)
	rfcRe   = regexp.MustCompile(`\b[A-ZÑ&]{3,4}\d{6}[A-Z0-9]{3}\b`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+?52[\s\-]?)?(?:\(?\d{2,3}\)?[\s\-]?)\d{3,4}[\s\-]?\d{4}`)
	nameRe  = regexp.MustCompile(`(?i)^\s*nombre(?:\s+completo)?\s*[:\-]\s*(.+)$`)
)

// ParseFields scans text for the registration values. CURP is matched before RFC so the
// RFC prefix embedded in a CURP is not reported twice.
func ParseFields(text string) Fields {
	f := Fields{Texto: text}
	upper := strings.ToUpper(text)

	if m := curpRe.FindString(upper); m != "" {
		f.CURP = m
		upper = strings.Replace(upper, m, " ", 1)
	}
	if m := rfcRe.FindString(upper); m != "" {
		f.RFC = m
	}
	if m := emailRe.FindString(text); m != "" {
		f.Correo = strings.ToLower(m)
	}
	if m := phoneRe.FindString(text); m != "" {
		f.Telefono = digitsOnly(m)
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := nameRe.FindStringSubmatch(line); m != nil {
			f.NombreCompleto = strings.Join(strings.Fields(m[1]), " ")
			break
		}
	}
	return f
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) > 10 && strings.HasPrefix(out, "52") {
		out = out[2:]
	}
	return out
}
