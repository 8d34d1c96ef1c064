package api

import (
	"github.com/npezzotti/go-social/internal/database"
	"github.com/npezzotti/go-social/internal/types"
	"github.com/samber/lo"
)

func toUser(u database.User) types.User {
	return types.User{
		Id:             u.Id,
		Username:       u.Username,
		EmailAddress:   u.EmailAddress,
		ProfilePicture: u.ProfilePicture,
		TwoFactorAuth:  u.TwoFactorEnabled,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func toUserSummary(u database.User) types.UserSummary {
	return types.UserSummary{
		Id:             u.Id,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
	}
}

func toUserSummaries(users []database.User) []types.UserSummary {
	return lo.Map(users, func(u database.User, _ int) types.UserSummary {
		return toUserSummary(u)
	})
}

func toComment(c database.Comment) types.Comment {
	return types.Comment{
		Id:        c.Id,
		Author:    toUserSummary(c.Author),
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

func toPost(p database.Post) types.Post {
	return types.Post{
		Id:        p.Id,
		Author:    toUserSummary(p.Author),
		Caption:   p.Caption,
		Image:     p.Image,
		Comments:  lo.Map(p.Comments, func(c database.Comment, _ int) types.Comment { return toComment(c) }),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toPosts(posts []database.Post) []types.Post {
	return lo.Map(posts, func(p database.Post, _ int) types.Post { return toPost(p) })
}

func toChat(c database.Chat) types.Chat {
	return types.Chat{
		Id:        c.Id,
		Members:   toUserSummaries(c.Members),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:        m.Id,
		Chat:      types.ChatRef{Id: m.ChatId},
		Sender:    toUserSummary(m.Sender),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
