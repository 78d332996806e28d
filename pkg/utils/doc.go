// Package utils provides shared helpers for the frontdesk service, currently the
// conflict-retry loop used around conditional store writes.
package utils
