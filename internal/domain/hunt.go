package domain

import "time"

// Location represents a physical site in the hunt, identified by a unique QR code
type Location struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	QRCode      string    `json:"qr_code"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Challenge is the question attached to a location
type Challenge struct {
	ID            string   `json:"id"`
	LocationID    string   `json:"location_id"`
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"-"`
	Points        int      `json:"points"`
	Options       []string `json:"options"`
}

// Hint belongs to a location and is dispensed in display order
type Hint struct {
	ID         string `json:"id"`
	LocationID string `json:"location_id"`
	Order      int    `json:"order"`
	Text       string `json:"text"`
}
