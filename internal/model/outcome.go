package model

import "time"

// Source values recorded with each dispatch.
const (
	OutcomeSourceIMAP = "imap"
	OutcomeSourceHTTP = "http"
	OutcomeSourceCLI  = "cli"
)

// OutcomeRecord is the stored form of a dispatch outcome. Args, Meta and
// Result are kept as JSON text.
type OutcomeRecord struct {
	ID        string    `json:"id" db:"id"`
	Command   string    `json:"command" db:"command"`
	Args      string    `json:"args" db:"args"`
	Handled   bool      `json:"handled" db:"handled"`
	Reason    string    `json:"reason" db:"reason"`
	Error     string    `json:"error" db:"error"`
	Meta      string    `json:"meta" db:"meta"`
	Result    string    `json:"result" db:"result"`
	Source    string    `json:"source" db:"source"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
