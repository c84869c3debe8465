//go:build tools

package tools

// Pins the swagger generator used by `swag init -g cmd/inferd/docs.go`.
import (
	_ "github.com/swaggo/swag/cmd/swag"
)
