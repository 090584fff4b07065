package database

import "errors"

// ErrEmptyMessage is returned by CreateMessage when the message text is
// empty after trimming. No row is written in that case.
var ErrEmptyMessage = errors.New("message text is empty")

type ChatRepository interface {
	Ping() error
	Close() error
	GetUser(username string) (User, error)
	UpsertUserConnected(username string, connected bool) (User, error)
	CreateMessage(username, text string) (Message, error)
	GetMessagesAfter(offset int64) ([]Message, error)
	GetConnectedUsernames() ([]string, error)
}
