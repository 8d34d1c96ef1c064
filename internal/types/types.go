package types

import (
	"time"
)

type User struct {
	Id             int       `json:"id"`
	Username       string    `json:"username"`
	EmailAddress   string    `json:"email,omitempty"`
	ProfilePicture string    `json:"profile_picture"`
	TwoFactorAuth  bool      `json:"two_factor_auth"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// UserSummary is the embedded form of a user inside posts, comments and
// messages.
type UserSummary struct {
	Id             int    `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

type Profile struct {
	User
	Followers   int  `json:"followers"`
	Following   int  `json:"following"`
	IsFollowing bool `json:"is_following"`
}

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OtpauthUrl string `json:"otpauth_url"`
	QrCode     string `json:"qr_code"`
}

type Comment struct {
	Id        int         `json:"id"`
	Author    UserSummary `json:"author"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
}

type Post struct {
	Id        int         `json:"id"`
	Author    UserSummary `json:"author"`
	Caption   string      `json:"caption"`
	Image     string      `json:"image"`
	Comments  []Comment   `json:"comments"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type Chat struct {
	Id        int           `json:"id"`
	Members   []UserSummary `json:"members"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Message is a stored chat message. Clients emit it verbatim as the data
// of a "new message" relay event, so chat and sender carry the ids the
// relay routes on.
type Message struct {
	Id        int         `json:"id"`
	Chat      ChatRef     `json:"chat"`
	Sender    UserSummary `json:"sender"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

type ChatRef struct {
	Id int `json:"id"`
}
