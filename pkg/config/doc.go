// Package config loads the frontdesk server configuration from a YAML file,
// applies defaults and validates durations, store selection and optional
// integrations (mail, audit, telemetry, rate limiting).
package config
