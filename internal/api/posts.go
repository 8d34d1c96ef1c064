package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/npezzotti/go-social/internal/database"
	"github.com/npezzotti/go-social/internal/media"
)

const postImageField = "image"

var errImageRequired = NewBadRequestErrorMessage("image is required")

// readPostRequest accepts either a JSON body or a multipart form whose
// image is an uploaded file or a URL. A file is stored before the
// request is validated, so the returned path must be cleaned up by the
// caller on later failures.
func (s *SocialApp) readPostRequest(w http.ResponseWriter, r *http.Request) (CreatePostRequest, bool, *ApiError) {
	var req CreatePostRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, false, NewBadRequestError()
		}
		req.Image = strings.TrimSpace(req.Image)
		if req.Image == "" {
			return req, false, errImageRequired
		}
		return req, false, s.validateRequest(&req)
	}

	if errResp := s.parseMultipart(w, r); errResp != nil {
		return req, false, errResp
	}

	req.Caption = r.FormValue("caption")
	uploaded := false
	if _, _, err := r.FormFile(postImageField); err == nil {
		path, errResp := s.saveUpload(r, postImageField)
		if errResp != nil {
			return req, false, errResp
		}
		req.Image = path
		uploaded = true
	} else {
		req.Image = strings.TrimSpace(r.FormValue(postImageField))
	}
	if req.Image == "" {
		return req, false, errImageRequired
	}

	if errResp := s.validateRequest(&req); errResp != nil {
		return req, uploaded, errResp
	}

	return req, uploaded, nil
}

func (s *SocialApp) createPost(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	req, uploaded, errResp := s.readPostRequest(w, r)
	if errResp != nil {
		s.discardUpload(uploaded, req.Image)
		s.writeError(w, errResp)
		return
	}

	post, err := s.db.CreatePost(database.CreatePostParams{
		AuthorId: userId,
		Caption:  strings.TrimSpace(req.Caption),
		Image:    req.Image,
	})
	if err != nil {
		s.discardUpload(uploaded, req.Image)
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, toPost(post))
}

func (s *SocialApp) discardUpload(uploaded bool, path string) {
	if !uploaded || s.media == nil {
		return
	}
	if err := s.media.Delete(path); err != nil {
		s.log.Printf("remove upload %s: %v", path, err)
	}
}

func (s *SocialApp) listPosts(w http.ResponseWriter, authorId int) {
	posts, err := s.db.ListPosts(authorId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toPosts(posts))
}

func (s *SocialApp) getPosts(w http.ResponseWriter, r *http.Request) {
	var authorId int
	if user := r.URL.Query().Get("user"); user != "" {
		id, err := strconv.Atoi(user)
		if err != nil || id <= 0 {
			errResp := NewBadRequestErrorMessage("invalid user")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		authorId = id
	}

	s.listPosts(w, authorId)
}

func (s *SocialApp) getMyPosts(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	s.listPosts(w, userId)
}

func (s *SocialApp) getUserPosts(w http.ResponseWriter, r *http.Request) {
	authorId, err := pathId(r, "userId")
	if err != nil {
		errResp := NewBadRequestErrorMessage(err.Error())
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.listPosts(w, authorId)
}

// lookupPost resolves the {postId} path value.
func (s *SocialApp) lookupPost(r *http.Request) (database.Post, *ApiError) {
	postId, err := pathId(r, "postId")
	if err != nil {
		return database.Post{}, NewBadRequestErrorMessage(err.Error())
	}

	post, err := s.db.GetPost(postId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Post{}, newApiError(http.StatusNotFound, "post not found")
		}
		return database.Post{}, NewInternalServerError(err)
	}

	return post, nil
}

func (s *SocialApp) getPost(w http.ResponseWriter, r *http.Request) {
	post, errResp := s.lookupPost(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toPost(post))
}

func (s *SocialApp) addComment(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	var req CommentRequest
	if errResp := s.decodeAndValidate(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		errResp := NewBadRequestErrorMessage("comment cannot be empty")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	post, errResp := s.lookupPost(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if _, err := s.db.CreateComment(database.CreateCommentParams{
		PostId:   post.Id,
		AuthorId: userId,
		Text:     text,
	}); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	updated, err := s.db.GetPost(post.Id)
	if err != nil {
		s.writeError(w, dbError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toPost(updated))
}

func (s *SocialApp) deletePost(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	post, errResp := s.lookupPost(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if post.AuthorId != userId {
		errResp := newApiError(http.StatusForbidden, "not authorized to delete this post")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeletePost(post.Id); err != nil {
		s.writeError(w, dbError(err))
		return
	}

	if s.media != nil && media.IsLocal(post.Image) {
		if err := s.media.Delete(post.Image); err != nil {
			s.log.Printf("remove image of post %d: %v", post.Id, err)
		}
	}

	s.writeJson(w, http.StatusOK, messageResponse{Message: "post deleted successfully"})
}
