// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, ensuring the binary never
// runs with partial, malformed, or missing configuration.
//
// Built-in rules cover most fields (`required`, `oneof`, `required_if`,
// duration bounds).  One struct-level rule is registered here: a MySQL
// DSN template that carries a `%s` verb needs a password to fill it.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.
//   • Section dividers use the simple comment style requested.

package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	val.RegisterStructValidation(func(sl validator.StructLevel) {
		db := sl.Current().Interface().(Database)
		if db.Driver == "mysql" && strings.Contains(db.DSN, "%s") && db.Password == "" {
			sl.ReportError(db.Password, "Password", "password", "required_with_template", "")
		}
	}, Database{})
	return val
}

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
