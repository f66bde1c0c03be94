package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/safatanc/gsalt-rewards/internal/infrastructures"
)

// UserVerifier answers whether a user passed identity verification. Raffles
// that require verification only draw tickets of verified owners.
type UserVerifier interface {
	IsUserVerified(ctx context.Context, userID uuid.UUID) (bool, error)
}

type ConnectService struct {
	baseURL string
	client  *http.Client
}

func NewConnectService(cfg *infrastructures.AppConfig) *ConnectService {
	return &ConnectService{
		baseURL: cfg.CONNECT_BASE_URL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *ConnectService) GetCurrentUser(accessToken string) (*models.ConnectUser, error) {
	if accessToken == "" {
		return nil, errors.NewBadRequestError("Access token is required")
	}

	req, err := http.NewRequest(http.MethodGet, s.baseURL+"/users/me", nil)
	if err != nil {
		return nil, err
	}

	// Check if accessToken is Bearer token
	if strings.HasPrefix(accessToken, "Bearer ") {
		req.Header.Set("Authorization", accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	return s.do(req)
}

func (s *ConnectService) GetUser(ctx context.Context, connectID string) (*models.ConnectUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/users/"+connectID, nil)
	if err != nil {
		return nil, err
	}

	return s.do(req)
}

// IsUserVerified treats a verified email on the Connect account as verification.
func (s *ConnectService) IsUserVerified(ctx context.Context, userID uuid.UUID) (bool, error) {
	user, err := s.GetUser(ctx, userID.String())
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return user.IsEmailVerified, nil
}

func (s *ConnectService) do(req *http.Request) (*models.ConnectUser, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to reach Connect")
	}
	defer resp.Body.Close()

	var webResponse models.WebResponse[models.ConnectUser]
	if err := json.NewDecoder(resp.Body).Decode(&webResponse); err != nil {
		return nil, errors.NewInternalServerError(err, "Failed to decode response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAppError(resp.StatusCode, webResponse.Message)
	}

	return &webResponse.Data, nil
}
