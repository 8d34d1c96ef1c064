package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/npezzotti/go-social/internal/database"
	"github.com/npezzotti/go-social/internal/media"
	"github.com/npezzotti/go-social/internal/types"
	"github.com/samber/lo"
)

const profilePictureField = "image"

type profilePictureResponse struct {
	Message        string `json:"message"`
	ProfilePicture string `json:"profile_picture"`
}

func (s *SocialApp) getProfile(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		s.writeError(w, dbError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toUser(user))
}

func (s *SocialApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if errResp := s.decodeAndValidate(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	curUser, err := s.db.GetAccountById(userId)
	if err != nil {
		s.writeError(w, dbError(err))
		return
	}

	params := database.UpdateProfileParams{
		UserId:       curUser.Id,
		Username:     curUser.Username,
		EmailAddress: curUser.EmailAddress,
	}
	if username := strings.TrimSpace(req.Username); username != "" {
		params.Username = username
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		params.EmailAddress = strings.ToLower(email)
	}

	dbUser, err := s.db.UpdateProfile(params)
	if err != nil {
		if isDuplicate(err) {
			errResp := NewConflictError("username or email already in use")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		s.writeError(w, dbError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toUser(dbUser))
}

// saveUpload stores the image in the multipart field name. The returned
// error is ready to be written to the client.
func (s *SocialApp) saveUpload(r *http.Request, name string) (string, *ApiError) {
	if s.media == nil {
		return "", NewInternalServerError(errors.New("media store not configured"))
	}

	file, _, err := r.FormFile(name)
	if err != nil {
		return "", NewBadRequestErrorMessage("no file uploaded")
	}
	defer file.Close()

	path, err := s.media.SaveImage(file)
	switch {
	case errors.Is(err, media.ErrNotImage):
		return "", NewBadRequestErrorMessage("only image uploads are allowed")
	case errors.Is(err, media.ErrTooLarge):
		return "", NewRequestEntityTooLargeError()
	case err != nil:
		return "", NewInternalServerError(err)
	}

	return path, nil
}

func (s *SocialApp) parseMultipart(w http.ResponseWriter, r *http.Request) *ApiError {
	var maxSize int64 = media.DefaultMaxSize
	if s.media != nil {
		maxSize = s.media.MaxSize()
	}

	// leave headroom for the other form fields
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+(1<<20))
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return NewRequestEntityTooLargeError()
		}
		return NewBadRequestError()
	}

	return nil
}

func (s *SocialApp) uploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	if errResp := s.parseMultipart(w, r); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	path, errResp := s.saveUpload(r, profilePictureField)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	user, err := s.db.UpdateProfilePicture(userId, path)
	if err != nil {
		if err := s.media.Delete(path); err != nil {
			s.log.Printf("remove orphaned upload %s: %v", path, err)
		}
		s.writeError(w, dbError(err))
		return
	}

	s.writeJson(w, http.StatusOK, profilePictureResponse{
		Message:        "profile picture updated",
		ProfilePicture: user.ProfilePicture,
	})
}

func (s *SocialApp) searchUsers(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		s.writeJson(w, http.StatusOK, []types.User{})
		return
	}

	users, err := s.db.SearchAccounts(query, userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, lo.Map(users, func(u database.User, _ int) types.User {
		return toUser(u)
	}))
}

// followTarget resolves the {id} path value to an existing account other
// than the caller.
func (s *SocialApp) followTarget(r *http.Request, userId int) (database.User, *ApiError) {
	targetId, err := pathId(r, "id")
	if err != nil {
		return database.User{}, NewBadRequestErrorMessage(err.Error())
	}
	if targetId == userId {
		return database.User{}, NewBadRequestErrorMessage("you cannot follow yourself")
	}

	target, err := s.db.GetAccountById(targetId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.User{}, newApiError(http.StatusNotFound, "user not found")
		}
		return database.User{}, NewInternalServerError(err)
	}

	return target, nil
}

func (s *SocialApp) followUser(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	target, errResp := s.followTarget(r, userId)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	created, err := s.db.FollowAccount(userId, target.Id)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if !created {
		errResp := NewBadRequestErrorMessage("already following this user")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "followed successfully"})
}

func (s *SocialApp) unfollowUser(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	target, errResp := s.followTarget(r, userId)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	removed, err := s.db.UnfollowAccount(userId, target.Id)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if !removed {
		errResp := NewBadRequestErrorMessage("not following this user")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "unfollowed successfully"})
}

func (s *SocialApp) getFollowers(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	users, err := s.db.ListFollowers(userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toUserSummaries(users))
}

func (s *SocialApp) getFollowing(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	users, err := s.db.ListFollowing(userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toUserSummaries(users))
}

func (s *SocialApp) getUserProfile(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	username := strings.TrimSpace(r.PathValue("username"))
	if username == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountByUsername(username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			errResp := newApiError(http.StatusNotFound, "user not found")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	counts, err := s.db.CountFollows(user.Id)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	following := false
	if user.Id != userId {
		following, err = s.db.IsFollowing(userId, user.Id)
		if err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
	}

	profile := toUser(user)
	// other users' email addresses stay private
	if user.Id != userId {
		profile.EmailAddress = ""
	}

	s.writeJson(w, http.StatusOK, types.Profile{
		User:        profile,
		Followers:   counts.Followers,
		Following:   counts.Following,
		IsFollowing: following,
	})
}
