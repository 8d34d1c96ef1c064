package api

import (
	"fmt"
	"strconv"

	"github.com/npezzotti/go-social/internal/database"
	"github.com/samber/lo"
)

// ChatDirectory resolves relay chat ids to the identities of the chat's
// members so a message reaches participants that have not joined the
// chat room.
type ChatDirectory struct {
	db database.SocialRepository
}

func NewChatDirectory(db database.SocialRepository) *ChatDirectory {
	return &ChatDirectory{db: db}
}

func (d *ChatDirectory) ChatParticipants(chatId string) ([]string, error) {
	id, err := strconv.Atoi(chatId)
	if err != nil {
		return nil, fmt.Errorf("invalid chat id %q: %w", chatId, err)
	}

	chat, err := d.db.GetChat(id)
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", id, err)
	}

	return lo.Map(chat.Members, func(u database.User, _ int) string {
		return strconv.Itoa(u.Id)
	}), nil
}
