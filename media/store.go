package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/sei-platform/seibackend/logger"
)

// Store defines the interface for saving, retrieving, and deleting media assets
type Store interface {
	// Save stores data under the asset type's directory with the given filename and
	// returns the relative path to persist.
	Save(ctx context.Context, assetType AssetType, filename string, contentType string, data io.Reader) (string, error)
	// Get retrieves a reader for an asset. ErrNotFound when it does not exist.
	Get(ctx context.Context, relativePath string) (io.ReadCloser, Info, error)
	// Delete removes an asset. Missing assets are not an error.
	Delete(ctx context.Context, relativePath string) error
	// PresignURL returns a temporary direct download URL, or ErrUnsupported.
	PresignURL(ctx context.Context, relativePath string) (string, error)
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath        string               // absolute path to the MEDIA_STORAGE_PATH
	subDirMap       map[AssetType]string // maps AssetType to subdirectory name (e.g., "miniaturas")
	resolvedPathMap map[AssetType]string // maps AssetType to full absolute path
	log             *logger.Logger
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath string, subDirs map[AssetType]string, log *logger.Logger) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[AssetType]string)
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !strings.HasPrefix(filepath.Clean(fullPath), absBasePath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolvedPaths[assetType] = fullPath
	}

	log.Info("media store initialized", "driver", "local", "path", absBasePath)
	return &LocalStorage{
		basePath:        absBasePath,
		subDirMap:       subDirs,
		resolvedPathMap: resolvedPaths,
		log:             log,
	}, nil
}

// EnsureDir creates the directory for the asset type if it doesn't exist
func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

func (ls *LocalStorage) Save(ctx context.Context, assetType AssetType, filename string, contentType string, data io.Reader) (string, error) {
	baseAssetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}
	if filename == "" || filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid filename '%s' for LocalStorage.Save", filename)
	}

	fullSavePath := filepath.Join(baseAssetDir, filename)
	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}

	ls.log.Debug("saved asset", "path", fullSavePath)
	return filepath.ToSlash(relativePath), nil
}

func (ls *LocalStorage) Get(ctx context.Context, relativePath string) (io.ReadCloser, Info, error) {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, Info{}, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Info{}, fmt.Errorf("%w: '%s'", ErrNotFound, relativePath)
		}
		return nil, Info{}, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, Info{}, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}
	if stat.IsDir() {
		file.Close()
		return nil, Info{}, fmt.Errorf("%w: '%s'", ErrNotFound, relativePath)
	}

	return file, Info{
		Size:        stat.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(fullPath)),
		ModTime:     stat.ModTime(),
	}, nil
}

// Delete removes an asset file
func (ls *LocalStorage) Delete(ctx context.Context, relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	if err == nil {
		ls.log.Debug("deleted asset", "path", fullPath)
	}
	return nil
}

// PresignURL is not available for files on disk; they are streamed by the asset server.
func (ls *LocalStorage) PresignURL(ctx context.Context, relativePath string) (string, error) {
	return "", ErrUnsupported
}

// GetFullPath calculates the absolute path and performs security check
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	// clean the relative path first to prevent simple traversal tricks
	cleanRelativePath := filepath.Clean("/" + relativePath)

	absFullPath, err := filepath.Abs(filepath.Join(ls.basePath, cleanRelativePath))
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if absFullPath != ls.basePath && !strings.HasPrefix(absFullPath, ls.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}

	return absFullPath, nil
}
