package database

import (
	"strings"
)

func (db *PgChatRepository) GetUser(username string) (User, error) {
	ctx, cancel := queryContext()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"SELECT username, is_connected FROM users "+
			"WHERE username = $1 LIMIT 1",
		username,
	)

	var user User
	err := row.Scan(
		&user.Username,
		&user.IsConnected,
	)

	return user, err
}

func (db *PgChatRepository) UpsertUserConnected(username string, connected bool) (User, error) {
	ctx, cancel := queryContext()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO users (username, is_connected) VALUES ($1, $2) "+
			"ON CONFLICT (username) DO UPDATE SET is_connected = EXCLUDED.is_connected "+
			"RETURNING username, is_connected",
		username,
		connected,
	)

	var user User
	err := row.Scan(
		&user.Username,
		&user.IsConnected,
	)

	return user, err
}

func (db *PgChatRepository) CreateMessage(username, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	ctx, cancel := queryContext()
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (username, message) VALUES ($1, $2) "+
			"RETURNING id, username, message, created_at",
		username,
		text,
	)

	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.Username,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgChatRepository) GetMessagesAfter(offset int64) ([]Message, error) {
	ctx, cancel := queryContext()
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT id, username, message, created_at FROM messages "+
			"WHERE id > $1 ORDER BY id ASC",
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.Username, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgChatRepository) GetConnectedUsernames() ([]string, error) {
	ctx, cancel := queryContext()
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT username FROM users WHERE is_connected = TRUE ORDER BY username",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usernames = make([]string, 0)
	for rows.Next() {
		var username string
		if err = rows.Scan(&username); err != nil {
			return nil, err
		}

		usernames = append(usernames, username)
	}

	return usernames, rows.Err()
}
