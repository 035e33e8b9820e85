package validator

import (
	"errors"
	"fmt"
	"sync"

	apperrors "conversation-analytics/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	doc        *openapi3.T
	router     routers.Router
	schemaPath string
	mutex      sync.RWMutex
}

// NewOpenAPIValidator loads and validates the document at schemaPath
func NewOpenAPIValidator(schemaPath string) (*OpenAPIValidator, error) {
	doc, router, err := load(schemaPath)
	if err != nil {
		return nil, err
	}
	return &OpenAPIValidator{doc: doc, router: router, schemaPath: schemaPath}, nil
}

func load(path string) (*openapi3.T, routers.Router, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", path, err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, nil, fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating OpenAPI router: %w", err)
	}
	return doc, router, nil
}

// ReloadSchema reloads the document from disk
func (v *OpenAPIValidator) ReloadSchema() error {
	doc, router, err := load(v.schemaPath)
	if err != nil {
		return err
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.doc = doc
	v.router = router
	return nil
}

// Middleware rejects requests whose parameters or body violate the document.
// Routes absent from the document pass through. Authentication is left to
// the auth middleware.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         false,
			},
		}
		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(requestError(err))
			c.Abort()
			return
		}

		c.Next()
	}
}

func requestError(err error) *apperrors.AppError {
	details := map[string]any{}
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			details["parameter"] = reqErr.Parameter.Name
		}
		if reqErr.Reason != "" {
			details["reason"] = reqErr.Reason
		}
	}
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		details["reason"] = schemaErr.Reason
		if path := schemaErr.JSONPointer(); len(path) > 0 {
			details["field"] = path
		}
	}
	return apperrors.BadRequestWithDetails(apperrors.CodeInvalidInput, "Request does not match the API contract", details).
		WithCause(err)
}

// Doc returns the loaded document
func (v *OpenAPIValidator) Doc() *openapi3.T {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return v.doc
}
