package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>docsync - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// The realtime protocol is not expressible in OpenAPI; /ws is listed with
// the event names it accepts.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "docsync", "version": "v0.1.0" },
  "components": {
    "schemas": {
      "Document": {"type":"object","properties":{"documentId":{"type":"string"},"title":{"type":"string"},"content":{"type":"string"},"createdAt":{"type":"string","format":"date-time"},"updatedAt":{"type":"string","format":"date-time"}}}
    }
  },
  "paths": {
    "/api/documents": {
      "get": { "summary": "List documents, most recently updated first", "responses": { "200": { "description": "documents" }, "503": { "description": "storage unavailable" } } },
      "post": {
        "summary": "Create a document",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"documentId":{"type":"string"},"title":{"type":"string"},"content":{"type":"string"}}}}}},
        "responses": { "201": { "description": "created" }, "409": { "description": "documentId already exists" } }
      }
    },
    "/api/documents/{id}": {
      "get": { "summary": "Get a document, creating it when missing", "responses": { "200": { "description": "document" } } },
      "patch": {
        "summary": "Save title and content",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"content":{"type":"string"}}}}}},
        "responses": { "200": { "description": "saved" } }
      },
      "delete": { "summary": "Delete a document", "responses": { "204": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/api/documents/{id}/export": {
      "get": { "summary": "Archive a snapshot and return a download URL", "responses": { "200": { "description": "url" }, "501": { "description": "archive not configured" } } }
    },
    "/ws": {
      "get": {
        "summary": "WebSocket collaboration endpoint",
        "description": "Frames are {\"event\",\"data\"}. Client events: join-document, send-changes, save-document, leave-document, cursor-position. Server events: load-document, active-users, user-joined, user-left, receive-changes, cursor-update, join-failed.",
        "responses": { "101": { "description": "switching protocols" } }
      }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
