package router

import (
	"os"
	"path/filepath"

	"conversation-analytics/backend/pkg/validator"
)

// AddOpenAPIValidation validates requests against the schema at schemaPath
// and serves the schema under /api/docs. A missing file disables validation.
func (r *Router) AddOpenAPIValidation(schemaPath string) bool {
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		r.Logger.Warn("OpenAPI schema file not found, skipping validation", "path", schemaPath)
		return false
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.Error("Failed to initialize OpenAPI validator", "error", err)
		return false
	}

	r.Engine.Use(v.Middleware())
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath)

	r.Engine.StaticFile("/api/docs/"+filepath.Base(schemaPath), schemaPath)
	r.Logger.Info("OpenAPI schema available at", "url", "/api/docs/"+filepath.Base(schemaPath))
	return true
}
