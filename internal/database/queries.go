package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
)

const (
	accountColumns = "a.id, a.username, a.email, a.password_hash, a.profile_picture, " +
		"a.two_factor_enabled, a.two_factor_secret, a.created_at, a.updated_at"
	postColumns = accountColumns + ", p.id, p.author_id, p.caption, p.image, p.created_at, p.updated_at"
	searchLimit = 50

	uniqueViolation = "23505"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner, extra ...any) (User, error) {
	var u User
	dest := append([]any{
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.ProfilePicture,
		&u.TwoFactorEnabled,
		&u.TwoFactorSecret,
		&u.CreatedAt,
		&u.UpdatedAt,
	}, extra...)

	err := row.Scan(dest...)
	return u, err
}

func scanAccounts(rows *sql.Rows) ([]User, error) {
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func idArray(ids []int) pq.Int64Array {
	return lo.Map(ids, func(id int, _ int) int64 { return int64(id) })
}

func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}

func (db *PgSocialRepository) getAccount(where string, arg any) (User, error) {
	row := db.conn.QueryRow(
		"SELECT "+accountColumns+" FROM accounts a WHERE "+where+" LIMIT 1",
		arg,
	)
	return scanAccount(row)
}

func (db *PgSocialRepository) CreateAccount(params CreateAccountParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRow(
		"INSERT INTO accounts AS a (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING "+accountColumns,
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		now,
	)

	u, err := scanAccount(row)
	if err != nil {
		return User{}, mapWriteError(err)
	}
	return u, nil
}

func (db *PgSocialRepository) GetAccountById(accountId int) (User, error) {
	return db.getAccount("a.id = $1", accountId)
}

func (db *PgSocialRepository) GetAccountByEmail(email string) (User, error) {
	return db.getAccount("LOWER(a.email) = LOWER($1)", email)
}

func (db *PgSocialRepository) GetAccountByUsername(username string) (User, error) {
	return db.getAccount("LOWER(a.username) = LOWER($1)", username)
}

func (db *PgSocialRepository) UpdateProfile(params UpdateProfileParams) (User, error) {
	row := db.conn.QueryRow(
		"UPDATE accounts AS a SET username = $2, email = $3, updated_at = $4 "+
			"WHERE a.id = $1 RETURNING "+accountColumns,
		params.UserId,
		params.Username,
		params.EmailAddress,
		time.Now().UTC(),
	)

	u, err := scanAccount(row)
	if err != nil {
		return User{}, mapWriteError(err)
	}
	return u, nil
}

func (db *PgSocialRepository) UpdateProfilePicture(accountId int, path string) (User, error) {
	row := db.conn.QueryRow(
		"UPDATE accounts AS a SET profile_picture = $2, updated_at = $3 "+
			"WHERE a.id = $1 RETURNING "+accountColumns,
		accountId,
		path,
		time.Now().UTC(),
	)
	return scanAccount(row)
}

func (db *PgSocialRepository) SetTwoFactor(accountId int, enabled bool, secret string) error {
	res, err := db.conn.Exec(
		"UPDATE accounts SET two_factor_enabled = $2, two_factor_secret = $3, updated_at = $4 WHERE id = $1",
		accountId,
		enabled,
		secret,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (db *PgSocialRepository) SearchAccounts(query string, excludeId int) ([]User, error) {
	pattern := "%" + likeEscaper.Replace(query) + "%"
	rows, err := db.conn.Query(
		"SELECT "+accountColumns+" FROM accounts a "+
			"WHERE a.id <> $2 AND (a.username ILIKE $1 OR a.email ILIKE $1) "+
			"ORDER BY a.username LIMIT $3",
		pattern,
		excludeId,
		searchLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("search accounts: %w", err)
	}

	return scanAccounts(rows)
}

func (db *PgSocialRepository) FollowAccount(followerId, followeeId int) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT INTO follows (follower_id, followee_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT DO NOTHING",
		followerId,
		followeeId,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgSocialRepository) UnfollowAccount(followerId, followeeId int) (bool, error) {
	res, err := db.conn.Exec(
		"DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2",
		followerId,
		followeeId,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgSocialRepository) IsFollowing(followerId, followeeId int) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)",
		followerId,
		followeeId,
	).Scan(&exists)

	return exists, err
}

func (db *PgSocialRepository) ListFollowers(accountId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT "+accountColumns+" FROM follows f JOIN accounts a ON a.id = f.follower_id "+
			"WHERE f.followee_id = $1 ORDER BY f.created_at DESC",
		accountId,
	)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}

	return scanAccounts(rows)
}

func (db *PgSocialRepository) ListFollowing(accountId int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT "+accountColumns+" FROM follows f JOIN accounts a ON a.id = f.followee_id "+
			"WHERE f.follower_id = $1 ORDER BY f.created_at DESC",
		accountId,
	)
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}

	return scanAccounts(rows)
}

func (db *PgSocialRepository) CountFollows(accountId int) (FollowCounts, error) {
	var counts FollowCounts
	err := db.conn.QueryRow(
		"SELECT "+
			"(SELECT COUNT(*) FROM follows WHERE followee_id = $1), "+
			"(SELECT COUNT(*) FROM follows WHERE follower_id = $1)",
		accountId,
	).Scan(&counts.Followers, &counts.Following)

	return counts, err
}

func (db *PgSocialRepository) CreatePost(params CreatePostParams) (Post, error) {
	now := time.Now().UTC()
	var id int
	err := db.conn.QueryRow(
		"INSERT INTO posts (author_id, caption, image, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id",
		params.AuthorId,
		params.Caption,
		params.Image,
		now,
	).Scan(&id)
	if err != nil {
		return Post{}, fmt.Errorf("insert post: %w", err)
	}

	return db.GetPost(id)
}

func (db *PgSocialRepository) GetPost(postId int) (Post, error) {
	row := db.conn.QueryRow(
		"SELECT "+postColumns+" FROM posts p JOIN accounts a ON a.id = p.author_id WHERE p.id = $1",
		postId,
	)

	p, err := scanPostRow(row)
	if err != nil {
		return Post{}, err
	}

	comments, err := db.commentsFor([]int{p.Id})
	if err != nil {
		return Post{}, err
	}
	p.Comments = lo.ValueOr(comments, p.Id, []Comment{})

	return p, nil
}

// ListPosts returns posts newest first. An authorId of zero lists every
// author's posts.
func (db *PgSocialRepository) ListPosts(authorId int) ([]Post, error) {
	query := "SELECT " + postColumns + " FROM posts p JOIN accounts a ON a.id = p.author_id"
	var args []any
	if authorId > 0 {
		query += " WHERE p.author_id = $1"
		args = append(args, authorId)
	}
	query += " ORDER BY p.created_at DESC, p.id DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]Post, 0)
	for rows.Next() {
		p, err := scanPostRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	comments, err := db.commentsFor(lo.Map(posts, func(p Post, _ int) int { return p.Id }))
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Comments = lo.ValueOr(comments, posts[i].Id, []Comment{})
	}

	return posts, nil
}

func scanPostRow(row scanner) (Post, error) {
	var p Post
	author, err := scanAccount(row, &p.Id, &p.AuthorId, &p.Caption, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Post{}, err
	}
	p.Author = author
	return p, nil
}

// commentsFor loads the comments of postIds grouped by post, oldest first.
func (db *PgSocialRepository) commentsFor(postIds []int) (map[int][]Comment, error) {
	if len(postIds) == 0 {
		return map[int][]Comment{}, nil
	}

	rows, err := db.conn.Query(
		"SELECT c.id, c.post_id, c.text, c.created_at, "+accountColumns+" FROM comments c "+
			"JOIN accounts a ON a.id = c.author_id WHERE c.post_id = ANY($1) "+
			"ORDER BY c.created_at, c.id",
		idArray(postIds),
	)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []Comment
	for rows.Next() {
		var c Comment
		author, err := scanCommentRow(rows, &c)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.Author = author
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lo.GroupBy(comments, func(c Comment) int { return c.PostId }), nil
}

func scanCommentRow(row scanner, c *Comment) (User, error) {
	var u User
	err := row.Scan(
		&c.Id,
		&c.PostId,
		&c.Text,
		&c.CreatedAt,
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.ProfilePicture,
		&u.TwoFactorEnabled,
		&u.TwoFactorSecret,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func (db *PgSocialRepository) DeletePost(postId int) error {
	res, err := db.conn.Exec("DELETE FROM posts WHERE id = $1", postId)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *PgSocialRepository) CreateComment(params CreateCommentParams) (Comment, error) {
	c := Comment{PostId: params.PostId, Text: params.Text}
	err := db.conn.QueryRow(
		"INSERT INTO comments (post_id, author_id, text, created_at) VALUES ($1, $2, $3, $4) "+
			"RETURNING id, created_at",
		params.PostId,
		params.AuthorId,
		params.Text,
		time.Now().UTC(),
	).Scan(&c.Id, &c.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}

	author, err := db.GetAccountById(params.AuthorId)
	if err != nil {
		return Comment{}, err
	}
	c.Author = author

	return c, nil
}

func (db *PgSocialRepository) FindDirectChat(accountA, accountB int) (Chat, error) {
	var id int
	err := db.conn.QueryRow(
		"SELECT c.id FROM chats c "+
			"JOIN chat_members ma ON ma.chat_id = c.id AND ma.account_id = $1 "+
			"JOIN chat_members mb ON mb.chat_id = c.id AND mb.account_id = $2 "+
			"ORDER BY c.id LIMIT 1",
		accountA,
		accountB,
	).Scan(&id)
	if err != nil {
		return Chat{}, err
	}

	return db.GetChat(id)
}

func (db *PgSocialRepository) CreateDirectChat(accountA, accountB int) (Chat, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var id int
	err = tx.QueryRow(
		"INSERT INTO chats (created_at, updated_at) VALUES ($1, $1) RETURNING id",
		now,
	).Scan(&id)
	if err != nil {
		return Chat{}, fmt.Errorf("insert chat: %w", err)
	}

	_, err = tx.Exec(
		"INSERT INTO chat_members (chat_id, account_id) SELECT $1, UNNEST($2::int[])",
		id,
		idArray([]int{accountA, accountB}),
	)
	if err != nil {
		return Chat{}, fmt.Errorf("insert chat members: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return Chat{}, err
	}

	return db.GetChat(id)
}

func (db *PgSocialRepository) GetChat(chatId int) (Chat, error) {
	var c Chat
	err := db.conn.QueryRow(
		"SELECT id, created_at, updated_at FROM chats WHERE id = $1",
		chatId,
	).Scan(&c.Id, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Chat{}, err
	}

	members, err := db.membersFor([]int{c.Id})
	if err != nil {
		return Chat{}, err
	}
	c.Members = lo.ValueOr(members, c.Id, []User{})

	return c, nil
}

// ListChats returns accountId's chats, most recently updated first.
func (db *PgSocialRepository) ListChats(accountId int) ([]Chat, error) {
	rows, err := db.conn.Query(
		"SELECT c.id, c.created_at, c.updated_at FROM chats c "+
			"JOIN chat_members m ON m.chat_id = c.id WHERE m.account_id = $1 "+
			"ORDER BY c.updated_at DESC, c.id DESC",
		accountId,
	)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := make([]Chat, 0)
	for rows.Next() {
		var c Chat
		if err := rows.Scan(&c.Id, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	members, err := db.membersFor(lo.Map(chats, func(c Chat, _ int) int { return c.Id }))
	if err != nil {
		return nil, err
	}
	for i := range chats {
		chats[i].Members = lo.ValueOr(members, chats[i].Id, []User{})
	}

	return chats, nil
}

func (db *PgSocialRepository) membersFor(chatIds []int) (map[int][]User, error) {
	if len(chatIds) == 0 {
		return map[int][]User{}, nil
	}

	rows, err := db.conn.Query(
		"SELECT "+accountColumns+", m.chat_id FROM chat_members m "+
			"JOIN accounts a ON a.id = m.account_id WHERE m.chat_id = ANY($1) ORDER BY a.id",
		idArray(chatIds),
	)
	if err != nil {
		return nil, fmt.Errorf("list chat members: %w", err)
	}
	defer rows.Close()

	members := make(map[int][]User)
	for rows.Next() {
		var chatId int
		u, err := scanAccount(rows, &chatId)
		if err != nil {
			return nil, fmt.Errorf("scan chat member: %w", err)
		}
		members[chatId] = append(members[chatId], u)
	}

	return members, rows.Err()
}

// CreateMessage stores a message and bumps the chat's updated_at in the
// same transaction.
func (db *PgSocialRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	msg := Message{ChatId: params.ChatId, Content: params.Content}
	now := time.Now().UTC()
	err = tx.QueryRow(
		"INSERT INTO messages (chat_id, sender_id, content, created_at) VALUES ($1, $2, $3, $4) "+
			"RETURNING id, created_at",
		params.ChatId,
		params.SenderId,
		params.Content,
		now,
	).Scan(&msg.Id, &msg.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec("UPDATE chats SET updated_at = $2 WHERE id = $1", params.ChatId, now)
	if err != nil {
		return Message{}, fmt.Errorf("update chat: %w", err)
	}

	msg.Sender, err = scanAccount(tx.QueryRow(
		"SELECT "+accountColumns+" FROM accounts a WHERE a.id = $1",
		params.SenderId,
	))
	if err != nil {
		return Message{}, fmt.Errorf("load sender: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

// GetMessages returns a chat's messages oldest first.
func (db *PgSocialRepository) GetMessages(chatId int) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT "+accountColumns+", m.id, m.chat_id, m.content, m.created_at FROM messages m "+
			"JOIN accounts a ON a.id = m.sender_id WHERE m.chat_id = $1 "+
			"ORDER BY m.created_at, m.id",
		chatId,
	)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		sender, err := scanAccount(rows, &msg.Id, &msg.ChatId, &msg.Content, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Sender = sender
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
