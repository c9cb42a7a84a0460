package models

import (
	"errors"
	"strings"
	"time"
)

const (
	RolePayments   = "payments"
	RoleBackoffice = "backoffice"
)

// APIClient is a caller of this service, authenticated with client
// credentials exchanged for a JWT.
type APIClient struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	SecretHash string    `json:"-"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

func (c *APIClient) Validate() error {
	if len(strings.TrimSpace(c.ClientID)) < 3 {
		return errors.New("client_id too short")
	}
	if c.Role == "" {
		c.Role = RolePayments
	}
	if c.Role != RolePayments && c.Role != RoleBackoffice {
		return errors.New("unknown role")
	}
	return nil
}
