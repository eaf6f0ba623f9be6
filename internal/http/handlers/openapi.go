package handlers

import (
	"bytes"
	_ "embed"
	"net/http"
	"time"
)

//go:embed openapi.json
var openAPIDocument []byte

var docsPage = []byte(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Image Service API</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
</head>
<body style="margin:0">
<redoc spec-url="/v1/openapi.json"></redoc>
<script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
</body>
</html>`)

// OpenAPIJSON serves the embedded API description.
func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	serveStatic(w, r, "openapi.json", "application/json; charset=utf-8", openAPIDocument)
}

// OpenAPIDocs serves a ReDoc page rendering OpenAPIJSON.
func (a *App) OpenAPIDocs(w http.ResponseWriter, r *http.Request) {
	serveStatic(w, r, "docs.html", "text/html; charset=utf-8", docsPage)
}

func serveStatic(w http.ResponseWriter, r *http.Request, name, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(body))
}
