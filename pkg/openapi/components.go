package openapi

import "maps"

// Components holds reusable schemas and responses.
type Components struct {
	Schemas   map[string]*Schema   `json:"schemas,omitempty"`
	Responses map[string]*Response `json:"responses,omitempty"`
}

// Shared error responses registered by NewComponents.
const (
	BadRequest      = "BadRequest"
	NotFound        = "NotFound"
	Conflict        = "Conflict"
	PayloadTooLarge = "PayloadTooLarge"
)

// NewComponents creates Components with the error schema and the shared
// error responses built on it.
func NewComponents() *Components {
	c := &Components{
		Schemas: map[string]*Schema{
			"Error": Object(map[string]*Schema{
				"error": String("Error message"),
			}, "error"),
		},
		Responses: make(map[string]*Response),
	}

	c.Responses[BadRequest] = ResponseJSON("Invalid request", "Error")
	c.Responses[NotFound] = ResponseJSON("Resource not found", "Error")
	c.Responses[Conflict] = ResponseJSON("Request conflicts with the current state", "Error")
	c.Responses[PayloadTooLarge] = ResponseJSON("Upload exceeds the maximum size", "Error")
	return c
}

// AddSchemas merges the given schemas into the component schemas.
func (c *Components) AddSchemas(schemas map[string]*Schema) {
	maps.Copy(c.Schemas, schemas)
}

// SchemaRef returns a Schema with a $ref to the named component schema.
func SchemaRef(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

// ResponseRef returns a Response with a $ref to the named component response.
func ResponseRef(name string) *Response {
	return &Response{Ref: "#/components/responses/" + name}
}

// RequestBodyJSON creates a JSON request body referencing the named schema.
func RequestBodyJSON(schemaName string, required bool) *RequestBody {
	return &RequestBody{
		Required: required,
		Content: map[string]*MediaType{
			"application/json": {Schema: SchemaRef(schemaName)},
		},
	}
}

// RequestBodyMultipart creates a multipart/form-data request body.
func RequestBodyMultipart(schema *Schema) *RequestBody {
	return &RequestBody{
		Required: true,
		Content: map[string]*MediaType{
			"multipart/form-data": {Schema: schema},
		},
	}
}

// ResponseJSON creates a JSON response referencing the named schema.
func ResponseJSON(description, schemaName string) *Response {
	return &Response{
		Description: description,
		Content: map[string]*MediaType{
			"application/json": {Schema: SchemaRef(schemaName)},
		},
	}
}

// PathParam creates a required UUID path parameter.
func PathParam(name, description string) *Parameter {
	return &Parameter{
		Name:        name,
		In:          "path",
		Required:    true,
		Description: description,
		Schema:      &Schema{Type: "string", Format: "uuid"},
	}
}

// QueryParam creates a query parameter with the given type.
func QueryParam(name, typ, description string, required bool) *Parameter {
	return &Parameter{
		Name:        name,
		In:          "query",
		Required:    required,
		Description: description,
		Schema:      &Schema{Type: typ},
	}
}
