// Package mail alerts operators by email when a customer question is escalated
// or times out. Mails are rendered from embedded HTML templates, queued and
// sent asynchronously over SMTP with retries.
package mail
