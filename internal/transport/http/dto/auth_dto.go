package dto

import "time"

type LoginRequest struct {
	Password string `json:"password"`
}

func (r *LoginRequest) Validate() []string {
	var errors []string

	if r.Password == "" {
		errors = append(errors, "password is required")
	}

	return errors
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
