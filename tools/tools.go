//go:build tools

package tools

// Tool dependencies pinned in go.mod. oapi-codegen regenerates the request
// models in internal/adapters/http (go generate ./...). The goose CLI can
// drive the same migrations as `auditctl migrate`:
//
//	goose -dir internal/adapters/postgres/migrations postgres "$DATABASE_URL" up
import (
	_ "github.com/oapi-codegen/oapi-codegen/v2/cmd/oapi-codegen"
	_ "github.com/pressly/goose/v3/cmd/goose"
)
