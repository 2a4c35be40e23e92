// Package jobs holds the transient job posting record shared between the
// device agent, the match engine and the source runners. A posting only
// becomes durable when it is promoted into a ledger record after a
// confirmed application.
package jobs

// Posting is a single discovered job opportunity.
type Posting struct {
	Source      string `json:"source,omitempty"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Experience  string `json:"experience,omitempty"`
	URL         string `json:"url,omitempty"`
}
