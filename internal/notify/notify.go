// Package notify delivers alert messages to recipients over SMTP.
package notify

// Message is one notification: a recipient set plus rendered content.
type Message struct {
	To      []string
	Subject string
	Body    string
}
