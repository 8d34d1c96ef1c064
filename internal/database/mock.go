package database

import (
	"github.com/stretchr/testify/mock"
)

type MockSocialRepository struct {
	mock.Mock
}

func (m *MockSocialRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockSocialRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSocialRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSocialRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSocialRepository) GetAccountByUsername(username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSocialRepository) UpdateProfile(params UpdateProfileParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSocialRepository) UpdateProfilePicture(accountId int, path string) (User, error) {
	args := m.Called(accountId, path)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSocialRepository) SetTwoFactor(accountId int, enabled bool, secret string) error {
	args := m.Called(accountId, enabled, secret)
	return args.Error(0)
}
func (m *MockSocialRepository) SearchAccounts(query string, excludeId int) ([]User, error) {
	args := m.Called(query, excludeId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockSocialRepository) FollowAccount(followerId, followeeId int) (bool, error) {
	args := m.Called(followerId, followeeId)
	return args.Bool(0), args.Error(1)
}
func (m *MockSocialRepository) UnfollowAccount(followerId, followeeId int) (bool, error) {
	args := m.Called(followerId, followeeId)
	return args.Bool(0), args.Error(1)
}
func (m *MockSocialRepository) IsFollowing(followerId, followeeId int) (bool, error) {
	args := m.Called(followerId, followeeId)
	return args.Bool(0), args.Error(1)
}
func (m *MockSocialRepository) ListFollowers(accountId int) ([]User, error) {
	args := m.Called(accountId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockSocialRepository) ListFollowing(accountId int) ([]User, error) {
	args := m.Called(accountId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockSocialRepository) CountFollows(accountId int) (FollowCounts, error) {
	args := m.Called(accountId)
	return args.Get(0).(FollowCounts), args.Error(1)
}
func (m *MockSocialRepository) CreatePost(params CreatePostParams) (Post, error) {
	args := m.Called(params)
	return args.Get(0).(Post), args.Error(1)
}
func (m *MockSocialRepository) GetPost(postId int) (Post, error) {
	args := m.Called(postId)
	return args.Get(0).(Post), args.Error(1)
}
func (m *MockSocialRepository) ListPosts(authorId int) ([]Post, error) {
	args := m.Called(authorId)
	return args.Get(0).([]Post), args.Error(1)
}
func (m *MockSocialRepository) DeletePost(postId int) error {
	args := m.Called(postId)
	return args.Error(0)
}
func (m *MockSocialRepository) CreateComment(params CreateCommentParams) (Comment, error) {
	args := m.Called(params)
	return args.Get(0).(Comment), args.Error(1)
}
func (m *MockSocialRepository) FindDirectChat(accountA, accountB int) (Chat, error) {
	args := m.Called(accountA, accountB)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockSocialRepository) CreateDirectChat(accountA, accountB int) (Chat, error) {
	args := m.Called(accountA, accountB)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockSocialRepository) GetChat(chatId int) (Chat, error) {
	args := m.Called(chatId)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockSocialRepository) ListChats(accountId int) ([]Chat, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Chat), args.Error(1)
}
func (m *MockSocialRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSocialRepository) GetMessages(chatId int) ([]Message, error) {
	args := m.Called(chatId)
	return args.Get(0).([]Message), args.Error(1)
}
