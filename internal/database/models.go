package database

import "time"

type User struct {
	Username    string
	IsConnected bool
}

type Message struct {
	Id        int64
	Username  string
	Content   string
	CreatedAt time.Time
}
