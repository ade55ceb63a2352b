//go:build tools

package tools

// Build-time tool dependencies. swag generates the OpenAPI document from the
// handler annotations: swag init -g cmd/conecta-core/main.go -o docs
import (
	_ "github.com/swaggo/swag"
)
