package httpadapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/kirillkom/campus-search/internal/core/domain"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// requestSchemas validates request bodies against the embedded OpenAPI
// component schemas.
type requestSchemas struct {
	search *openapi3.Schema
	ask    *openapi3.Schema
}

func loadRequestSchemas(ctx context.Context) (*requestSchemas, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPIDocument)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}

	lookup := func(name string) (*openapi3.Schema, error) {
		ref, ok := doc.Components.Schemas[name]
		if !ok || ref == nil || ref.Value == nil {
			return nil, fmt.Errorf("openapi schema %q is missing", name)
		}
		return ref.Value, nil
	}
	search, err := lookup("SearchRequest")
	if err != nil {
		return nil, err
	}
	ask, err := lookup("AskRequest")
	if err != nil {
		return nil, err
	}
	return &requestSchemas{search: search, ask: ask}, nil
}

// decodeValidated checks raw against schema and then decodes it into out.
func decodeValidated(raw []byte, schema *openapi3.Schema, out any) error {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", errors.New("invalid json"))
	}
	if err := schema.VisitJSON(generic); err != nil {
		var schemaErr *openapi3.SchemaError
		if errors.As(err, &schemaErr) {
			field := schemaErr.JSONPointer()
			if len(field) > 0 {
				return domain.WrapError(domain.ErrInvalidInput, "validate request", fmt.Errorf("%v: %s", field, schemaErr.Reason))
			}
			return domain.WrapError(domain.ErrInvalidInput, "validate request", errors.New(schemaErr.Reason))
		}
		return domain.WrapError(domain.ErrInvalidInput, "validate request", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}
