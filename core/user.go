package core

import "time"

type (
	User struct {
		Subject   string    `json:"subject"`
		Login     string    `json:"login"`
		Email     string    `json:"email,omitempty"`
		AvatarURL string    `json:"avatarUrl,omitempty"`
		Name      string    `json:"name,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}
)
