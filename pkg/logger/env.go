package logger

import (
	"os"
	"strings"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// DetectEnv reads APP_ENV and falls back to dev.
func DetectEnv() Env {
	return ParseEnv(os.Getenv("APP_ENV"))
}

// ParseEnv is LookupEnv with dev for anything unrecognised.
func ParseEnv(raw string) Env {
	if env, ok := LookupEnv(raw); ok {
		return env
	}
	return EnvDev
}

// LookupEnv maps raw and its common aliases to an Env.
func LookupEnv(raw string) (Env, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dev", "development", "local":
		return EnvDev, true
	case "stage", "staging", "preprod", "pre-production":
		return EnvStage, true
	case "prod", "production":
		return EnvProd, true
	default:
		return "", false
	}
}
