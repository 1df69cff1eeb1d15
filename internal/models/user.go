package models

import "time"

type User struct {
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	ChatID    int64     `json:"chat_id"` // Telegram chat used for reminders
	TimeZone  string    `json:"time_zone"`
	CreatedAt time.Time `json:"created_at"`
}
