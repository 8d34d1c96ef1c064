package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/npezzotti/go-social/internal/database"
	"github.com/npezzotti/go-social/internal/media"
	"github.com/npezzotti/go-social/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// 1x1 transparent PNG
var testPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x60, 0x00, 0x02, 0x00,
	0x00, 0x05, 0x00, 0x01, 0xe9, 0xfa, 0xdc, 0xd8, 0x00, 0x00, 0x00, 0x00,
	0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func newMediaApp(t *testing.T, db database.SocialRepository) (*SocialApp, string) {
	dir := t.TempDir()
	store, err := media.NewStore(dir, 1<<20)
	require.NoError(t, err)

	app := newTestApp(t, db)
	app.media = store
	return app, dir
}

// multipartRequest builds a multipart form with the given text fields
// and, when content is non-nil, a file in fileField.
func multipartRequest(t *testing.T, target, fileField string, content []byte, fields map[string]string) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != nil {
		fw, err := mw.CreateFormFile(fileField, "upload.bin")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestGetProfileHandler(t *testing.T) {
	user := testAccount(t, 1, "password")
	user.TwoFactorSecret = "SECRET"

	mockRepo := &database.MockSocialRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("GetAccountById", 1).Return(user, nil).Once()

	app := newTestApp(t, mockRepo)
	rr := httptest.NewRecorder()
	app.getProfile(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/users/profile", nil), 1))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "SECRET", "expected two-factor secret to stay private")

	var u types.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
	assert.Equal(t, user.EmailAddress, u.EmailAddress)
}

func TestUpdateProfileHandler(t *testing.T) {
	current := testAccount(t, 1, "password")

	tcases := []struct {
		name       string
		body       any
		expected   database.UpdateProfileParams
		mockErr    error
		expectCall bool
		statusCode int
	}{
		{
			name:       "updates both fields",
			body:       UpdateProfileRequest{Username: "renamed", Email: "Renamed@Example.com"},
			expected:   database.UpdateProfileParams{UserId: 1, Username: "renamed", EmailAddress: "renamed@example.com"},
			expectCall: true,
			statusCode: http.StatusOK,
		},
		{
			name:       "empty fields keep current values",
			body:       UpdateProfileRequest{},
			expected:   database.UpdateProfileParams{UserId: 1, Username: current.Username, EmailAddress: current.EmailAddress},
			expectCall: true,
			statusCode: http.StatusOK,
		},
		{
			name:       "invalid email",
			body:       UpdateProfileRequest{Email: "nope"},
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "duplicate username",
			body:       UpdateProfileRequest{Username: "taken"},
			expected:   database.UpdateProfileParams{UserId: 1, Username: "taken", EmailAddress: current.EmailAddress},
			mockErr:    fmt.Errorf("%w: accounts_username_lower_idx", database.ErrDuplicate),
			expectCall: true,
			statusCode: http.StatusConflict,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockSocialRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.expectCall {
				mockRepo.On("GetAccountById", 1).Return(current, nil).Once()
				updated := current
				updated.Username = tc.expected.Username
				updated.EmailAddress = tc.expected.EmailAddress
				mockRepo.On("UpdateProfile", tc.expected).Return(updated, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo)
			rr := httptest.NewRecorder()
			app.updateProfile(rr, asUser(jsonRequest(t, http.MethodPut, "/api/users/profile", tc.body), 1))

			assert.Equal(t, tc.statusCode, rr.Code)
			if tc.statusCode == http.StatusOK {
				var u types.User
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
				assert.Equal(t, tc.expected.Username, u.Username)
				assert.Equal(t, tc.expected.EmailAddress, u.EmailAddress)
			}
		})
	}
}

func TestUploadProfilePictureHandler(t *testing.T) {
	t.Run("stores image", func(t *testing.T) {
		mockRepo := &database.MockSocialRepository{}
		defer mockRepo.AssertExpectations(t)

		var storedPath string
		mockRepo.On("UpdateProfilePicture", 1, mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) { storedPath = args.String(1) }).
			Return(database.User{Id: 1}, nil).Once()

		app, dir := newMediaApp(t, mockRepo)
		rr := httptest.NewRecorder()
		app.uploadProfilePicture(rr, asUser(multipartRequest(t, "/api/users/upload-profile-picture", "image", testPNG, nil), 1))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, strings.HasPrefix(storedPath, media.URLPrefix), "expected public upload path")
		assert.True(t, strings.HasSuffix(storedPath, ".png"), "expected png extension")
		_, err := os.Stat(filepath.Join(dir, filepath.Base(storedPath)))
		assert.NoError(t, err, "expected file on disk")
	})

	t.Run("rejects non image", func(t *testing.T) {
		app, dir := newMediaApp(t, &database.MockSocialRepository{})
		rr := httptest.NewRecorder()
		app.uploadProfilePicture(rr, asUser(multipartRequest(t, "/", "image", []byte("plain text, not an image"), nil), 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "expected nothing to be stored")
	})

	t.Run("missing file", func(t *testing.T) {
		app, _ := newMediaApp(t, &database.MockSocialRepository{})
		rr := httptest.NewRecorder()
		app.uploadProfilePicture(rr, asUser(multipartRequest(t, "/", "image", nil, map[string]string{"other": "x"}), 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "no file uploaded", decodeApiError(t, rr).Message)
	})

	t.Run("db failure removes upload", func(t *testing.T) {
		mockRepo := &database.MockSocialRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("UpdateProfilePicture", 1, mock.AnythingOfType("string")).
			Return(database.User{}, errors.New("db error")).Once()

		app, dir := newMediaApp(t, mockRepo)
		rr := httptest.NewRecorder()
		app.uploadProfilePicture(rr, asUser(multipartRequest(t, "/", "image", testPNG, nil), 1))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "expected orphaned upload to be removed")
	})
}

func TestSearchUsersHandler(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		mockRepo := &database.MockSocialRepository{}
		defer mockRepo.AssertExpectations(t)

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		app.searchUsers(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/users/search-users?query=%20", nil), 1))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `[]`, rr.Body.String())
	})

	t.Run("matches", func(t *testing.T) {
		mockRepo := &database.MockSocialRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("SearchAccounts", "ali", 1).Return([]database.User{{Id: 2, Username: "alice"}}, nil).Once()

		app := newTestApp(t, mockRepo)
		rr := httptest.NewRecorder()
		app.searchUsers(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/users/search-users?query=ali", nil), 1))

		require.Equal(t, http.StatusOK, rr.Code)
		var users []types.User
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&users))
		require.Len(t, users, 1)
		assert.Equal(t, "alice", users[0].Username)
	})
}

func TestFollowHandlers(t *testing.T) {
	target := database.User{Id: 2, Username: "bob"}

	tcases := []struct {
		name       string
		follow     bool
		pathId     string
		lookupErr  error
		changed    bool
		expectCall bool
		statusCode int
	}{
		{name: "follow", follow: true, pathId: "2", changed: true, expectCall: true, statusCode: http.StatusOK},
		{name: "follow twice", follow: true, pathId: "2", changed: false, expectCall: true, statusCode: http.StatusBadRequest},
		{name: "follow self", follow: true, pathId: "1", statusCode: http.StatusBadRequest},
		{name: "follow unknown", follow: true, pathId: "2", lookupErr: sql.ErrNoRows, statusCode: http.StatusNotFound},
		{name: "follow invalid id", follow: true, pathId: "abc", statusCode: http.StatusBadRequest},
		{name: "unfollow", follow: false, pathId: "2", changed: true, expectCall: true, statusCode: http.StatusOK},
		{name: "unfollow not following", follow: false, pathId: "2", changed: false, expectCall: true, statusCode: http.StatusBadRequest},
		{name: "unfollow self", follow: false, pathId: "1", statusCode: http.StatusBadRequest},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockSocialRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.expectCall || tc.lookupErr != nil {
				mockRepo.On("GetAccountById", target.Id).Return(target, tc.lookupErr).Once()
			}
			if tc.expectCall {
				method := "UnfollowAccount"
				if tc.follow {
					method = "FollowAccount"
				}
				mockRepo.On(method, 1, target.Id).Return(tc.changed, nil).Once()
			}

			app := newTestApp(t, mockRepo)
			handler, action := app.unfollowUser, "unfollow"
			if tc.follow {
				handler, action = app.followUser, "follow"
			}

			req := asUser(httptest.NewRequest(http.MethodPost, "/api/users/"+tc.pathId+"/"+action, nil), 1)
			req.SetPathValue("id", tc.pathId)
			rr := httptest.NewRecorder()
			handler(rr, req)

			assert.Equal(t, tc.statusCode, rr.Code)
		})
	}
}

func TestFollowListHandlers(t *testing.T) {
	users := []database.User{{Id: 2, Username: "bob", EmailAddress: "bob@example.com"}}

	mockRepo := &database.MockSocialRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("ListFollowers", 1).Return(users, nil).Once()
	mockRepo.On("ListFollowing", 1).Return([]database.User{}, nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	app.getFollowers(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/users/followers", nil), 1))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"id":2,"username":"bob"}]`, rr.Body.String(), "expected summaries without email")

	rr = httptest.NewRecorder()
	app.getFollowing(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/users/following", nil), 1))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestGetUserProfileHandler(t *testing.T) {
	bob := testAccount(t, 2, "password")

	t.Run("other user", func(t *testing.T) {
		mockRepo := &database.MockSocialRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByUsername", "BOB").Return(bob, nil).Once()
		mockRepo.On("CountFollows", bob.Id).Return(database.FollowCounts{Followers: 3, Following: 4}, nil).Once()
		mockRepo.On("IsFollowing", 1, bob.Id).Return(true, nil).Once()

		app := newTestApp(t, mockRepo)
		req := asUser(httptest.NewRequest(http.MethodGet, "/api/users/profile/BOB", nil), 1)
		req.SetPathValue("username", "BOB")
		rr := httptest.NewRecorder()
		app.getUserProfile(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var p types.Profile
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
		assert.Equal(t, bob.Username, p.Username)
		assert.Empty(t, p.EmailAddress, "expected other user's email to be hidden")
		assert.Equal(t, 3, p.Followers)
		assert.Equal(t, 4, p.Following)
		assert.True(t, p.IsFollowing)
	})

	t.Run("own profile", func(t *testing.T) {
		mockRepo := &database.MockSocialRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByUsername", bob.Username).Return(bob, nil).Once()
		mockRepo.On("CountFollows", bob.Id).Return(database.FollowCounts{}, nil).Once()

		app := newTestApp(t, mockRepo)
		req := asUser(httptest.NewRequest(http.MethodGet, "/", nil), bob.Id)
		req.SetPathValue("username", bob.Username)
		rr := httptest.NewRecorder()
		app.getUserProfile(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var p types.Profile
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
		assert.Equal(t, bob.EmailAddress, p.EmailAddress)
		assert.False(t, p.IsFollowing)
	})

	t.Run("unknown user", func(t *testing.T) {
		mockRepo := &database.MockSocialRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetAccountByUsername", "ghost").Return(database.User{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo)
		req := asUser(httptest.NewRequest(http.MethodGet, "/", nil), 1)
		req.SetPathValue("username", "ghost")
		rr := httptest.NewRecorder()
		app.getUserProfile(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
