package database

import "errors"

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

type SocialRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	GetAccountByUsername(username string) (User, error)
	UpdateProfile(params UpdateProfileParams) (User, error)
	UpdateProfilePicture(accountId int, path string) (User, error)
	SetTwoFactor(accountId int, enabled bool, secret string) error
	SearchAccounts(query string, excludeId int) ([]User, error)
	FollowAccount(followerId, followeeId int) (bool, error)
	UnfollowAccount(followerId, followeeId int) (bool, error)
	IsFollowing(followerId, followeeId int) (bool, error)
	ListFollowers(accountId int) ([]User, error)
	ListFollowing(accountId int) ([]User, error)
	CountFollows(accountId int) (FollowCounts, error)
	CreatePost(params CreatePostParams) (Post, error)
	GetPost(postId int) (Post, error)
	ListPosts(authorId int) ([]Post, error)
	DeletePost(postId int) error
	CreateComment(params CreateCommentParams) (Comment, error)
	FindDirectChat(accountA, accountB int) (Chat, error)
	CreateDirectChat(accountA, accountB int) (Chat, error)
	GetChat(chatId int) (Chat, error)
	ListChats(accountId int) ([]Chat, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessages(chatId int) ([]Message, error)
}
