package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DocsHandler serves the OpenAPI document and a browser viewer for it.
type DocsHandler struct {
	doc  []byte
	etag string
}

// NewDocsHandler wraps the OpenAPI YAML. A nil doc makes /swagger/spec 404.
func NewDocsHandler(doc []byte) *DocsHandler {
	h := &DocsHandler{doc: doc}
	if doc != nil {
		sum := sha256.Sum256(doc)
		h.etag = `"` + hex.EncodeToString(sum[:8]) + `"`
	}
	return h
}

// Document handles GET /swagger/spec.
func (h *DocsHandler) Document(c *gin.Context) {
	if h.doc == nil {
		c.String(http.StatusNotFound, "api document not loaded")
		return
	}
	c.Header("ETag", h.etag)
	c.Header("Cache-Control", "no-cache")
	if c.GetHeader("If-None-Match") == h.etag {
		c.AbortWithStatus(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/yaml", h.doc)
}

// Viewer handles GET /swagger.
func (h *DocsHandler) Viewer(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(viewerPage))
}

const viewerPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>vending-gateway API</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="docs"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>SwaggerUIBundle({ url: '/swagger/spec', dom_id: '#docs', tryItOutEnabled: false });</script>
</body>
</html>`
