// Package index loads emitted artifacts and upserts their records into a
// search or storage backend.
package index

import (
	"context"
	"strings"
)

// Record is one indexed document. ID is the upsert key and is not part of
// the stored body.
type Record struct {
	ID       string `json:"-"`
	Email    string `json:"email"`
	Context  string `json:"email_context"`
	Domain   string `json:"domain"`
	From     string `json:"from"`
	IDSource string `json:"id_source"`
	RunID    string `json:"run_id"`
}

// Sink persists records. Upserting an id that already exists overwrites it.
type Sink interface {
	Upsert(ctx context.Context, records []Record) error
}

// domainOf returns the text after the last "@", or "" when there is none.
func domainOf(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return ""
	}
	return email[i+1:]
}
