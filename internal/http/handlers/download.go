package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

var downloadTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
}

// contentTypeFor picks the response type from the file extension alone.
func contentTypeFor(name string) string {
	if ct, ok := downloadTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Download serves a materialized artifact by bare file name.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file_name")
	path, err := a.Generator.LocateArtifact(name)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("file_name", name).Msg("artifact not found")
		a.fail(w, r, err)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		a.fail(w, r, fmt.Errorf("open artifact: %w", err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		a.fail(w, r, fmt.Errorf("stat artifact: %w", err))
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("path", path).Msg("serving artifact")
	w.Header().Set("Content-Type", contentTypeFor(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
