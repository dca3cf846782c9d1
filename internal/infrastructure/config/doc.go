// Package config loads SenseGrid settings.
//
// Values are layered: built-in defaults, then the YAML file, then a .env
// file in the working directory (via godotenv), then SENSEGRID_* variables.
// Validate rejects a configuration that cannot start the server; notably
// the JWT secret has no default and needs 32 or more characters.
//
//	cfg, err := config.Load("configs/config.yaml")
package config
