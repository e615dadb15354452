// Package schemas provides JSON Schema validation for records at the
// ingestion boundary. Incoming rows are validated before fingerprinting,
// so type drift in the upstream feed surfaces as a schema mismatch instead
// of silent coercion inside the merge.
package schemas

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jonathan/trip-loader/internal/types"
)

// ResolveSchemaPath attempts to find a schema file by trying multiple common path resolutions.
// It tries paths relative to the current working directory, then paths relative to likely repo root locations.
// Returns the first path that exists, or empty string if none found.
// This is useful when CLI commands may run from different working directory contexts (e.g., tests).
func ResolveSchemaPath(relativePath string) string {
	candidates := []string{
		relativePath,
		filepath.Join("..", relativePath),
		filepath.Join("..", "..", relativePath),
	}

	for _, candidate := range candidates {
		if absPath, err := filepath.Abs(candidate); err == nil {
			if _, err := os.Stat(absPath); err == nil {
				return absPath
			}
		}
	}

	return ""
}

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	RecordIndex int
	Errors      []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("record %d failed validation:\n", ve.RecordIndex))
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// Unwrap ties every validation failure to the schema-mismatch error kind.
func (ve *ValidationError) Unwrap() error {
	return types.ErrSchemaMismatch
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Validator validates records against a compiled JSON Schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the schema at the given path.
func NewValidator(schemaPath string) (*Validator, error) {
	absPath, err := filepath.Abs(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema path: %w", err)
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return nil, &SchemaLoadError{Path: absPath, Message: "schema file not found"}
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + absPath))
	if err != nil {
		return nil, &SchemaLoadError{Path: absPath, Message: "schema failed to compile", Cause: err}
	}
	return &Validator{schema: schema}, nil
}

// NewValidatorFromString compiles a schema from its JSON content.
func NewValidatorFromString(schemaContent string) (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaContent))
	if err != nil {
		return nil, &SchemaLoadError{Path: "(string schema)", Message: "schema failed to compile", Cause: err}
	}
	return &Validator{schema: schema}, nil
}

// ValidateRecord checks one record against the schema.
func (v *Validator) ValidateRecord(rec types.Record) error {
	return v.validate(rec, 0)
}

// ValidateBatch checks every record and fails on the first invalid one,
// so a bad batch aborts before anything is written.
func (v *Validator) ValidateBatch(records []types.Record) error {
	for i, rec := range records {
		if err := v.validate(rec, i); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validate(rec types.Record, index int) error {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(map[string]any(rec)))
	if err != nil {
		return &SchemaLoadError{Path: "(compiled schema)", Message: "validation failed to run", Cause: err}
	}
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		RecordIndex: index,
		Errors:      make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
