package intake

import "time"

// Record is the immutable snapshot of a session taken by the finish
// procedure and handed to the notification dispatcher.
type Record struct {
	ID          string
	UserID      int64
	Name        string
	Phone       string
	Description string
	Language    Language
	Attachments []string
	ReceivedAt  time.Time
}

// Supplementary is the lightweight snapshot built for free-text messages
// that arrive after a session has finished.
type Supplementary struct {
	ID         string
	UserID     int64
	Name       string
	Phone      string
	Text       string
	Language   Language
	ReceivedAt time.Time
}
