package models

// MenuItem is a coffee/shake/side entry from the content backend.
type MenuItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"` // e.g. "hot", "cold", "shakes", "sides"
	Price       int      `json:"price"`    // whole INR
	ImageURL    string   `json:"image_url,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Available   bool     `json:"available"`
}

// MediaEntry is a page-scoped image or video managed through the content
// backend (hero backgrounds, gallery shots).
type MediaEntry struct {
	ID      string `json:"id"`
	Page    string `json:"page"`    // e.g. "home", "workshops", "why-robusta"
	Section string `json:"section"` // e.g. "hero-background"
	URL     string `json:"url"`
	Type    string `json:"type"` // "image" or "video"
	Active  bool   `json:"active"`
}
