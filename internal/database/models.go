package database

import "time"

type User struct {
	Id               int
	Username         string
	EmailAddress     string
	PasswordHash     string
	ProfilePicture   string
	TwoFactorEnabled bool
	TwoFactorSecret  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type FollowCounts struct {
	Followers int
	Following int
}

type Post struct {
	Id        int
	AuthorId  int
	Author    User
	Caption   string
	Image     string
	Comments  []Comment
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Comment struct {
	Id        int
	PostId    int
	Author    User
	Text      string
	CreatedAt time.Time
}

type Chat struct {
	Id        int
	Members   []User
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasMember reports whether userId is one of the chat's members.
func (c Chat) HasMember(userId int) bool {
	for _, m := range c.Members {
		if m.Id == userId {
			return true
		}
	}
	return false
}

type Message struct {
	Id        int
	ChatId    int
	Sender    User
	Content   string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type UpdateProfileParams struct {
	UserId       int
	Username     string
	EmailAddress string
}

type CreatePostParams struct {
	AuthorId int
	Caption  string
	Image    string
}

type CreateCommentParams struct {
	PostId   int
	AuthorId int
	Text     string
}

type CreateMessageParams struct {
	ChatId   int
	SenderId int
	Content  string
}
