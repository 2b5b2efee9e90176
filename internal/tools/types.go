// Package tools defines the Tool type, the static registry, the argument
// validator, and the builtin tool implementations.
package tools

import "context"

// Tool represents a callable function the dispatcher can invoke
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Execute     func(ctx context.Context, input map[string]interface{}) (string, error)
}
