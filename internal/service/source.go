package service

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
)

// SourceService lists travel-time payload files.
type SourceService struct {
	sourcesDir string
}

// NewSourceService creates a new source service.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{
		sourcesDir: filepath.Join(dataDir, "sources"),
	}
}

// payload extensions and their types
var extToType = map[string]string{
	".geojson": "GeoJSON",
	".json":    "GeoJSON",
	".js":      "GeoJSON (script)",
}

// List returns all available payload files.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, eris.Wrap(err, "source: read dir")
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		fileType, ok := extToType[strings.ToLower(filepath.Ext(entry.Name()))]
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     humanize.Bytes(uint64(info.Size())),
			FileType: fileType,
		})
	}

	return files, nil
}

// Has reports whether name is a listed payload file. Names with path
// separators are rejected.
func (s *SourceService) Has(name string) bool {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	if _, ok := extToType[strings.ToLower(filepath.Ext(name))]; !ok {
		return false
	}
	_, err := os.Stat(filepath.Join(s.sourcesDir, name))
	return err == nil
}
