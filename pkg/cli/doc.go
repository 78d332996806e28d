// Package cli defines the frontdesk server flags, their environment variable
// fallbacks and how they override the configuration file.
package cli
