package model

import "time"

// Delivery is the stored record of one email sent to one recipient.
type Delivery struct {
	ID        string    `json:"id" db:"id"`
	Recipient string    `json:"recipient" db:"recipient"`
	Subject   string    `json:"subject" db:"subject"`
	Success   bool      `json:"success" db:"success"`
	Error     string    `json:"error" db:"error"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
