package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/npezzotti/go-social/internal/database"
	"github.com/npezzotti/go-social/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChat(id int, memberIds ...int) database.Chat {
	now := time.Now().UTC()
	chat := database.Chat{Id: id, CreatedAt: now, UpdatedAt: now}
	for _, m := range memberIds {
		chat.Members = append(chat.Members, database.User{Id: m})
	}
	return chat
}

func TestCreateChatHandler(t *testing.T) {
	tcases := []struct {
		name       string
		body       any
		setup      func(m *database.MockSocialRepository)
		statusCode int
		chatId     int
	}{
		{
			name: "returns existing chat",
			body: CreateChatRequest{UserId: 2},
			setup: func(m *database.MockSocialRepository) {
				m.On("GetAccountById", 2).Return(database.User{Id: 2}, nil).Once()
				m.On("FindDirectChat", 1, 2).Return(testChat(8, 1, 2), nil).Once()
			},
			statusCode: http.StatusOK,
			chatId:     8,
		},
		{
			name: "creates new chat",
			body: CreateChatRequest{UserId: 2},
			setup: func(m *database.MockSocialRepository) {
				m.On("GetAccountById", 2).Return(database.User{Id: 2}, nil).Once()
				m.On("FindDirectChat", 1, 2).Return(database.Chat{}, sql.ErrNoRows).Once()
				m.On("CreateDirectChat", 1, 2).Return(testChat(9, 1, 2), nil).Once()
			},
			statusCode: http.StatusCreated,
			chatId:     9,
		},
		{
			name:       "missing user id",
			body:       map[string]any{},
			setup:      func(m *database.MockSocialRepository) {},
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "chat with self",
			body:       CreateChatRequest{UserId: 1},
			setup:      func(m *database.MockSocialRepository) {},
			statusCode: http.StatusBadRequest,
		},
		{
			name: "unknown user",
			body: CreateChatRequest{UserId: 2},
			setup: func(m *database.MockSocialRepository) {
				m.On("GetAccountById", 2).Return(database.User{}, sql.ErrNoRows).Once()
			},
			statusCode: http.StatusNotFound,
		},
		{
			name: "lookup failure",
			body: CreateChatRequest{UserId: 2},
			setup: func(m *database.MockSocialRepository) {
				m.On("GetAccountById", 2).Return(database.User{Id: 2}, nil).Once()
				m.On("FindDirectChat", 1, 2).Return(database.Chat{}, errors.New("db error")).Once()
			},
			statusCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockSocialRepository{}
			defer mockRepo.AssertExpectations(t)
			tc.setup(mockRepo)

			app := newTestApp(t, mockRepo)
			rr := httptest.NewRecorder()
			app.createChat(rr, asUser(jsonRequest(t, http.MethodPost, "/api/chats", tc.body), 1))

			assert.Equal(t, tc.statusCode, rr.Code)
			if tc.statusCode == http.StatusOK || tc.statusCode == http.StatusCreated {
				var chat types.Chat
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&chat))
				assert.Equal(t, tc.chatId, chat.Id)
				assert.Len(t, chat.Members, 2, "expected members to be populated")
			}
		})
	}
}

func TestGetChatsHandler(t *testing.T) {
	mockRepo := &database.MockSocialRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("ListChats", 1).Return([]database.Chat{testChat(3, 1, 2), testChat(2, 1, 4)}, nil).Once()

	app := newTestApp(t, mockRepo)
	rr := httptest.NewRecorder()
	app.getChats(rr, asUser(httptest.NewRequest(http.MethodGet, "/api/chats", nil), 1))

	require.Equal(t, http.StatusOK, rr.Code)
	var chats []types.Chat
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&chats))
	require.Len(t, chats, 2)
	assert.Equal(t, 3, chats[0].Id, "expected repository order to be kept")
}

func TestSendMessageHandler(t *testing.T) {
	stored := database.Message{
		Id:        11,
		ChatId:    5,
		Sender:    database.User{Id: 1, Username: "alice"},
		Content:   "hi",
		CreatedAt: time.Now().UTC(),
	}

	tcases := []struct {
		name       string
		body       any
		setup      func(m *database.MockSocialRepository)
		statusCode int
	}{
		{
			name: "stores message",
			body: SendMessageRequest{ChatId: 5, Content: " hi "},
			setup: func(m *database.MockSocialRepository) {
				m.On("GetChat", 5).Return(testChat(5, 1, 2), nil).Once()
				m.On("CreateMessage", database.CreateMessageParams{ChatId: 5, SenderId: 1, Content: "hi"}).
					Return(stored, nil).Once()
			},
			statusCode: http.StatusOK,
		},
		{
			name:       "missing content",
			body:       SendMessageRequest{ChatId: 5},
			setup:      func(m *database.MockSocialRepository) {},
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "blank content",
			body:       SendMessageRequest{ChatId: 5, Content: "  "},
			setup:      func(m *database.MockSocialRepository) {},
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "content too long",
			body:       SendMessageRequest{ChatId: 5, Content: strings.Repeat("x", 4001)},
			setup:      func(m *database.MockSocialRepository) {},
			statusCode: http.StatusBadRequest,
		},
		{
			name: "longest content",
			body: SendMessageRequest{ChatId: 5, Content: strings.Repeat("é", 4000)},
			setup: func(m *database.MockSocialRepository) {
				m.On("GetChat", 5).Return(testChat(5, 1, 2), nil).Once()
				m.On("CreateMessage", database.CreateMessageParams{ChatId: 5, SenderId: 1, Content: strings.Repeat("é", 4000)}).
					Return(stored, nil).Once()
			},
			statusCode: http.StatusOK,
		},
		{
			name:       "missing chat",
			body:       SendMessageRequest{Content: "hi"},
			setup:      func(m *database.MockSocialRepository) {},
			statusCode: http.StatusBadRequest,
		},
		{
			name: "unknown chat",
			body: SendMessageRequest{ChatId: 5, Content: "hi"},
			setup: func(m *database.MockSocialRepository) {
				m.On("GetChat", 5).Return(database.Chat{}, sql.ErrNoRows).Once()
			},
			statusCode: http.StatusNotFound,
		},
		{
			name: "not a member",
			body: SendMessageRequest{ChatId: 5, Content: "hi"},
			setup: func(m *database.MockSocialRepository) {
				m.On("GetChat", 5).Return(testChat(5, 2, 3), nil).Once()
			},
			statusCode: http.StatusForbidden,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockSocialRepository{}
			defer mockRepo.AssertExpectations(t)
			tc.setup(mockRepo)

			app := newTestApp(t, mockRepo)
			rr := httptest.NewRecorder()
			app.sendMessage(rr, asUser(jsonRequest(t, http.MethodPost, "/api/chats/message", tc.body), 1))

			assert.Equal(t, tc.statusCode, rr.Code)
			if tc.statusCode != http.StatusOK {
				decodeApiError(t, rr)
				return
			}

			var msg types.Message
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
			assert.Equal(t, stored.Id, msg.Id)
			assert.Equal(t, stored.ChatId, msg.Chat.Id, "expected chat id for relaying")
			assert.Equal(t, stored.Sender.Id, msg.Sender.Id, "expected sender id for relaying")
		})
	}
}

func TestGetMessagesHandler(t *testing.T) {
	t.Run("member reads history", func(t *testing.T) {
		mockRepo := &database.MockSocialRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetChat", 5).Return(testChat(5, 1, 2), nil).Once()
		mockRepo.On("GetMessages", 5).Return([]database.Message{
			{Id: 1, ChatId: 5, Sender: database.User{Id: 2, Username: "bob"}, Content: "first"},
			{Id: 2, ChatId: 5, Sender: database.User{Id: 1, Username: "alice"}, Content: "second"},
		}, nil).Once()

		app := newTestApp(t, mockRepo)
		req := asUser(httptest.NewRequest(http.MethodGet, "/api/chats/message/5", nil), 1)
		req.SetPathValue("chatId", "5")
		rr := httptest.NewRecorder()
		app.getMessages(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var msgs []types.Message
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&msgs))
		require.Len(t, msgs, 2)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, "bob", msgs[0].Sender.Username, "expected sender to be populated")
	})

	t.Run("non member", func(t *testing.T) {
		mockRepo := &database.MockSocialRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetChat", 5).Return(testChat(5, 2, 3), nil).Once()

		app := newTestApp(t, mockRepo)
		req := asUser(httptest.NewRequest(http.MethodGet, "/", nil), 1)
		req.SetPathValue("chatId", "5")
		rr := httptest.NewRecorder()
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("invalid chat id", func(t *testing.T) {
		app := newTestApp(t, &database.MockSocialRepository{})
		req := asUser(httptest.NewRequest(http.MethodGet, "/", nil), 1)
		req.SetPathValue("chatId", "abc")
		rr := httptest.NewRecorder()
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
