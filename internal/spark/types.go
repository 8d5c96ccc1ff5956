package spark

// Message is a chat message.
type Message struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	PersonID    string `json:"personId"`
	PersonEmail string `json:"personEmail"`
	Text        string `json:"text"`
	Markdown    string `json:"markdown,omitempty"`
}

// Room is a chat conversation context.
type Room struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Membership is a person's association with a room.
type Membership struct {
	ID          string `json:"id"`
	RoomID      string `json:"roomId"`
	PersonID    string `json:"personId"`
	PersonEmail string `json:"personEmail"`
}

// Person is a chat platform account.
type Person struct {
	ID          string   `json:"id"`
	Emails      []string `json:"emails"`
	DisplayName string   `json:"displayName"`
}

// Email returns the person's primary email address, or "" if none.
func (p *Person) Email() string {
	if p == nil || len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0]
}
