package types

import (
	"time"
)

type ChatMessage struct {
	Id        int64     `json:"id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type PresenceChange struct {
	Username    string `json:"username"`
	IsConnected bool   `json:"is_connected"`
}

type About struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
