package media

import (
	"errors"
	"time"

	"github.com/sei-platform/seibackend/config"
)

type AssetType string

const (
	AssetTypeInstitutionImage AssetType = "institution_image"
	AssetTypeThumbnail        AssetType = "thumbnail"
	AssetTypeCV               AssetType = "cv"
)

var (
	ErrNotFound    = errors.New("asset not found")
	ErrUnsupported = errors.New("operation not supported by this store")
)

// DefaultSubDirs maps each asset type to its directory (local) or key prefix (s3).
func DefaultSubDirs() map[AssetType]string {
	return map[AssetType]string{
		AssetTypeInstitutionImage: config.DefaultImagesSubDir,
		AssetTypeThumbnail:        config.DefaultThumbnailsSubDir,
		AssetTypeCV:               config.DefaultCVSubDir,
	}
}

// Info describes a stored asset.
type Info struct {
	Size        int64
	ContentType string
	ModTime     time.Time
}
