package api

import (
	"database/sql"
	"testing"

	"github.com/npezzotti/go-social/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatDirectory(t *testing.T) {
	mockRepo := &database.MockSocialRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("GetChat", 5).Return(testChat(5, 1, 2), nil).Once()
	mockRepo.On("GetChat", 6).Return(database.Chat{}, sql.ErrNoRows).Once()

	d := NewChatDirectory(mockRepo)

	participants, err := d.ChatParticipants("5")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, participants)

	_, err = d.ChatParticipants("6")
	assert.ErrorIs(t, err, sql.ErrNoRows, "expected lookup error to be wrapped")

	_, err = d.ChatParticipants("not-a-number")
	assert.Error(t, err, "expected invalid chat id to fail")
}
