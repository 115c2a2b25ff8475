package workflow

import "errors"

// Closed set of loader failures (spec §4.B).
var (
	ErrDefinitionNotFound = errors.New("workflow: definition not found")
	ErrInvalidJSON        = errors.New("workflow: invalid json")
	ErrSchemaInvalid      = errors.New("workflow: schema invalid")
	ErrStructureInvalid   = errors.New("workflow: structure invalid")
)
