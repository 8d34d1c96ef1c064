package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/npezzotti/go-social/internal/database"
	"github.com/npezzotti/go-social/internal/types"
	"github.com/samber/lo"
)

var (
	errChatNotFound  = newApiError(http.StatusNotFound, "chat not found")
	errNotChatMember = newApiError(http.StatusForbidden, "not a member of this chat")
)

// createChat returns the direct chat between the caller and userId,
// creating it on first use.
func (s *SocialApp) createChat(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	var req CreateChatRequest
	if errResp := s.decodeAndValidate(r, &req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if req.UserId == userId {
		errResp := NewBadRequestErrorMessage("cannot start a chat with yourself")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetAccountById(req.UserId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			errResp := newApiError(http.StatusNotFound, "user not found")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	chat, err := s.db.FindDirectChat(userId, req.UserId)
	if err == nil {
		s.writeJson(w, http.StatusOK, toChat(chat))
		return
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	chat, err = s.db.CreateDirectChat(userId, req.UserId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, toChat(chat))
}

func (s *SocialApp) getChats(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	chats, err := s.db.ListChats(userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, lo.Map(chats, func(c database.Chat, _ int) types.Chat {
		return toChat(c)
	}))
}

// memberChat loads chatId and checks that userId belongs to it.
func (s *SocialApp) memberChat(chatId, userId int) (database.Chat, *ApiError) {
	chat, err := s.db.GetChat(chatId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Chat{}, errChatNotFound
		}
		return database.Chat{}, NewInternalServerError(err)
	}

	if !chat.HasMember(userId) {
		return database.Chat{}, errNotChatMember
	}

	return chat, nil
}

// sendMessage persists a message and returns it. Delivery to online peers
// is left to the client, which emits the returned message on the relay.
func (s *SocialApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	content := strings.TrimSpace(req.Content)
	if req.ChatId == 0 || content == "" {
		errResp := NewBadRequestErrorMessage("all fields required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if errResp := s.validateRequest(&req); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, errResp := s.memberChat(req.ChatId, userId)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		ChatId:   chat.Id,
		SenderId: userId,
		Content:  content,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, toMessage(msg))
}

func (s *SocialApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requireUserId(w, r)
	if !ok {
		return
	}

	chatId, err := pathId(r, "chatId")
	if err != nil {
		errResp := NewBadRequestErrorMessage(err.Error())
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, errResp := s.memberChat(chatId, userId)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	messages, err := s.db.GetMessages(chat.Id)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, lo.Map(messages, func(m database.Message, _ int) types.Message {
		return toMessage(m)
	}))
}
