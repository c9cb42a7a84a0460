package services

import (
	"errors"
	"strings"

	"github.com/baharkarakas/mpesa-backend/internal/auth"
	"github.com/baharkarakas/mpesa-backend/internal/models"
	repo "github.com/baharkarakas/mpesa-backend/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid client credentials")

type ClientService struct {
	r repo.APIClients
}

func NewClientService(r repo.APIClients) *ClientService { return &ClientService{r: r} }

func (s *ClientService) Register(clientID, secret, role string) (models.APIClient, error) {
	c := models.APIClient{ClientID: strings.TrimSpace(clientID), Role: role}
	if err := c.Validate(); err != nil {
		return models.APIClient{}, err
	}
	if len(secret) < 12 {
		return models.APIClient{}, errors.New("client_secret too short")
	}
	hash, err := auth.HashSecret(secret)
	if err != nil {
		return models.APIClient{}, err
	}
	return s.r.Create(c.ClientID, hash, c.Role)
}

func (s *ClientService) Authenticate(clientID, secret string) (models.APIClient, error) {
	c, err := s.r.GetByClientID(clientID)
	if err != nil {
		return models.APIClient{}, ErrInvalidCredentials
	}
	if err := auth.VerifySecret(secret, c.SecretHash); err != nil {
		return models.APIClient{}, ErrInvalidCredentials
	}
	return c, nil
}
