package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/sei-platform/seibackend/logger"
)

const (
	InstitutionImageMaxWidth = 1600
	InstitutionImageQuality  = 85
	ThumbnailJpegQuality     = 90
	JpegFileExtension        = ".jpg"
	PDFFileExtension         = ".pdf"
)

// ErrNotPDF is returned when an uploaded CV is not a PDF document.
var ErrNotPDF = errors.New("el archivo no es un PDF")

var pdfMagic = []byte("%PDF-")

// uploadImageExtensions are the institution image formats imaging can decode.
var uploadImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// IsRasterImage reports whether filename has one of the accepted image extensions.
func IsRasterImage(filename string) bool {
	return uploadImageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Processor handles media transformations like thumbnailing and resizing. it
// relies on a Store implementation for saving the results.
type Processor struct {
	store Store
	log   *logger.Logger
}

func NewProcessor(store Store, log *logger.Logger) *Processor {
	return &Processor{store: store, log: log}
}

func (p *Processor) Store() Store { return p.store }

// ProcessInstitutionImage decodes an uploaded logo or photo, applies EXIF orientation,
// caps its width and saves it as JPEG. Returns the relative path.
func (p *Processor) ProcessInstitutionImage(ctx context.Context, fileData io.Reader) (string, error) {
	img, err := imaging.Decode(fileData, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode uploaded image: %w", err)
	}
	if img.Bounds().Dx() > InstitutionImageMaxWidth {
		img = imaging.Resize(img, InstitutionImageMaxWidth, 0, imaging.Lanczos)
	}

	relPath, err := p.saveJPEG(ctx, AssetTypeInstitutionImage, img, InstitutionImageQuality)
	if err != nil {
		return "", fmt.Errorf("failed to save institution image via store: %w", err)
	}
	p.log.Info("processed institution image", "path", relPath)
	return relPath, nil
}

// GenerateThumbnail loads the image at originalRelPath and saves a copy whose longest
// side is at most maxSize. Returns the relative path of the thumbnail.
func (p *Processor) GenerateThumbnail(ctx context.Context, originalRelPath string, maxSize int) (string, error) {
	rc, _, err := p.store.Get(ctx, originalRelPath)
	if err != nil {
		return "", fmt.Errorf("failed to open original '%s': %w", originalRelPath, err)
	}
	defer rc.Close()

	originalImg, err := imaging.Decode(rc)
	if err != nil {
		return "", fmt.Errorf("failed to decode original '%s': %w", originalRelPath, err)
	}

	newWidth, newHeight, err := thumbnailSize(originalImg.Bounds(), maxSize)
	if err != nil {
		return "", err
	}
	thumb := imaging.Resize(originalImg, newWidth, newHeight, imaging.Lanczos)

	savedRelPath, err := p.saveJPEG(ctx, AssetTypeThumbnail, thumb, ThumbnailJpegQuality)
	if err != nil {
		return "", fmt.Errorf("failed to save thumbnail via store: %w", err)
	}

	p.log.Debug("generated thumbnail", "original", originalRelPath, "thumbnail", savedRelPath)
	return savedRelPath, nil
}

// SaveCV stores an uploaded curriculum. Only PDF documents are accepted.
func (p *Processor) SaveCV(ctx context.Context, fileData io.Reader) (string, error) {
	br := bufio.NewReader(fileData)
	head, err := br.Peek(len(pdfMagic))
	if err != nil || !bytes.Equal(head, pdfMagic) {
		return "", ErrNotPDF
	}

	cvUUID, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID for CV: %w", err)
	}
	relPath, err := p.store.Save(ctx, AssetTypeCV, cvUUID.String()+PDFFileExtension, "application/pdf", br)
	if err != nil {
		return "", fmt.Errorf("failed to save CV via store: %w", err)
	}
	p.log.Info("saved CV", "path", relPath)
	return relPath, nil
}

func (p *Processor) saveJPEG(ctx context.Context, assetType AssetType, img image.Image, quality int) (string, error) {
	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, img, imaging.JPEG, imaging.JPEGQuality(quality))
		if err != nil {
			p.log.Error("failed to encode image", "asset_type", assetType, "error", err)
			writer.CloseWithError(fmt.Errorf("image encoding failed: %w", err))
			return
		}
		writer.Close()
	}()

	fileUUID, err := uuid.NewRandom()
	if err != nil {
		reader.CloseWithError(err)
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}

	relPath, err := p.store.Save(ctx, assetType, fileUUID.String()+JpegFileExtension, "image/jpeg", reader)
	if err != nil {
		// unblock the encoder if Save stopped reading early
		reader.CloseWithError(err)
		return "", err
	}
	return relPath, nil
}

// thumbnailSize fits bounds into a maxSize square, never upscaling.
func thumbnailSize(bounds image.Rectangle, maxSize int) (int, int, error) {
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	if origWidth <= 0 || origHeight <= 0 {
		return 0, 0, fmt.Errorf("invalid original image dimensions: %dx%d", origWidth, origHeight)
	}

	newWidth, newHeight := origWidth, origHeight
	if origWidth > origHeight {
		if origWidth > maxSize {
			newWidth = maxSize
			newHeight = int(math.Round(float64(origHeight) * (float64(maxSize) / float64(origWidth))))
		}
	} else if origHeight > maxSize {
		newHeight = maxSize
		newWidth = int(math.Round(float64(origWidth) * (float64(maxSize) / float64(origHeight))))
	}
	return max(1, newWidth), max(1, newHeight), nil
}
