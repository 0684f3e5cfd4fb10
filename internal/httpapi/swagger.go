//go:build swagger

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

// openAPIDoc is the served OpenAPI document. Regenerate with `swag init` when handlers change.
const openAPIDoc = `{
  "swagger": "2.0",
  "info": {"title": "agentd admin API", "version": "1.0", "description": "Task scheduler and resource manager administration."},
  "basePath": "/",
  "paths": {
    "/status": {"get": {"tags": ["status"], "summary": "Scheduler and resource summary", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
    "/tasks": {"get": {"tags": ["tasks"], "summary": "List pending and running tasks", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
    "/tasks/{id}": {
      "get": {"tags": ["tasks"], "summary": "Task status", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
      "delete": {"tags": ["tasks"], "summary": "Cancel a task", "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "task already finished"}}}
    },
    "/resources": {"get": {"tags": ["resources"], "summary": "Resource usage and registered models", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
    "/resources/optimize": {"post": {"tags": ["resources"], "summary": "Run remediation for the current pressure once", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}}
  }
}`

type staticDoc struct{}

func (staticDoc) ReadDoc() string { return openAPIDoc }

func init() {
	swag.Register(swag.Name, staticDoc{})
}

// MountSwagger serves the swagger UI under /swagger/.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/doc.json", func(w http.ResponseWriter, _ *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
