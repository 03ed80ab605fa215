package config

import "github.com/go-playground/validator/v10"

// Validate checks cross-field constraints declared in the struct tags.
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}
