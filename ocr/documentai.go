package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/sei-platform/seibackend/logger"
)

const processTimeout = 2 * time.Minute

type DocumentAIConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

// DocumentAIExtractor sends uploads to a Google Document AI OCR processor.
type DocumentAIExtractor struct {
	client *documentai.DocumentProcessorClient
	name   string
	log    *logger.Logger
}

func NewDocumentAIExtractor(ctx context.Context, cfg DocumentAIConfig, log *logger.Logger) (*DocumentAIExtractor, error) {
	if cfg.ProjectID == "" || cfg.ProcessorID == "" {
		return nil, fmt.Errorf("documentai project and processor are required")
	}
	if cfg.Location == "" {
		cfg.Location = "us"
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, credentialOptions()...)

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create documentai client: %w", err)
	}
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, cfg.Location, cfg.ProcessorID)
	log.With("service", "DocumentAI").Info("Document AI initialized", "processor", name)
	return &DocumentAIExtractor{client: client, name: name, log: log}, nil
}

func (e *DocumentAIExtractor) Extract(ctx context.Context, data []byte, mimeType string) (Fields, error) {
	if len(data) == 0 {
		return Fields{}, nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	ctx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	resp, err := e.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: e.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{Content: data, MimeType: mimeType},
		},
	})
	if err != nil {
		return Fields{}, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.GetDocument() == nil {
		return Fields{}, nil
	}
	text := resp.GetDocument().GetText()
	e.log.Debug("Document processed", "mime_type", mimeType, "chars", len(text))
	return ParseFields(text), nil
}

func (e *DocumentAIExtractor) Close() error {
	return e.client.Close()
}

// credentialOptions accepts either inline JSON or a file path in the usual env vars.
func credentialOptions() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}
