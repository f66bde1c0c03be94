package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/safatanc/gsalt-rewards/internal/app/errors"
	"github.com/safatanc/gsalt-rewards/internal/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteEngagementMintsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.createAdvertisement(t, "AD-7", models.EngagementTypeClick, 2)

	engagement, err := env.engagements.StartEngagement(ctx, user, &models.EngagementStartRequest{AdvertisementID: "AD-7"})
	require.NoError(t, err)
	assert.Equal(t, models.EngagementStatusStarted, engagement.Status)
	assert.Equal(t, models.EngagementTypeClick, engagement.Type)
	assert.Equal(t, 2, engagement.BaseTickets)

	completed, first, err := env.engagements.CompleteEngagement(ctx, engagement.ID.String(), user)
	require.NoError(t, err)
	assert.Equal(t, models.EngagementStatusCompleted, completed.Status)
	require.Len(t, first.Tickets, 3)
	assert.True(t, first.Created)

	_, second, err := env.engagements.CompleteEngagement(ctx, engagement.ID.String(), user)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Issuance.ID, second.Issuance.ID)

	assert.Equal(t, 1, env.publisher.Count(models.RoutingEngagementCompleted))
	assert.Equal(t, 1, env.publisher.Count(models.RoutingTicketsGenerated))
}

func TestStartEngagementTwiceReturnsSameEngagement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.createAdvertisement(t, "AD-8", models.EngagementTypeCompletion, 3)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		engagement, err := env.engagements.StartEngagement(ctx, user, &models.EngagementStartRequest{AdvertisementID: "AD-8"})
		require.NoError(t, err)
		ids = append(ids, engagement.ID)
		_, _, err = env.engagements.CompleteEngagement(ctx, engagement.ID.String(), user)
		require.NoError(t, err)
	}
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])

	var engagements, tickets int64
	require.NoError(t, env.db.Model(&models.Engagement{}).Where("user_id = ?", user).Count(&engagements).Error)
	require.NoError(t, env.db.Model(&models.RaffleTicket{}).Where("user_id = ?", user).Count(&tickets).Error)
	assert.Equal(t, int64(1), engagements)
	assert.Equal(t, int64(6), tickets)

	other, err := env.engagements.StartEngagement(ctx, uuid.New(), &models.EngagementStartRequest{AdvertisementID: "AD-8"})
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], other.ID)
}

func TestStartEngagementRequiresActiveAdvertisement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := env.engagements.StartEngagement(ctx, user, &models.EngagementStartRequest{AdvertisementID: "AD-missing"})
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	env.createAdvertisement(t, "AD-off", models.EngagementTypeView, 1)
	_, err = env.engagements.UpdateAdvertisementStatus(ctx, "AD-off", &models.AdvertisementStatusUpdateRequest{
		Status: models.AdvertisementStatusInactive,
	})
	require.NoError(t, err)

	_, err = env.engagements.StartEngagement(ctx, user, &models.EngagementStartRequest{AdvertisementID: "AD-off"})
	assert.True(t, errors.HasCode(err, ErrCodeAdvertisementNotActive))
}

func TestCreateAdvertisementRejectsDuplicatesAndLargeRewards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAdvertisement(t, "AD-1", models.EngagementTypeView, 1)

	_, err := env.engagements.CreateAdvertisement(ctx, &models.AdvertisementCreateRequest{
		ID: "AD-1", Name: "again", Type: models.EngagementTypeView, BaseTickets: 1,
	})
	assert.True(t, errors.HasCode(err, ErrCodeAdvertisementExists))

	_, err = env.engagements.CreateAdvertisement(ctx, &models.AdvertisementCreateRequest{
		ID: "AD-2", Name: "jackpot", Type: models.EngagementTypeCompletion, BaseTickets: 300,
	})
	assert.Error(t, err)

	page, err := env.engagements.GetAdvertisements(&models.PaginationRequest{Page: 1, Limit: 10}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalItems)
}

func TestEngagementTicketsAreCapped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.issuance.rules.MaxTickets = 4
	env.createAdvertisement(t, "AD-big", models.EngagementTypeCompletion, 10)

	engagement, err := env.engagements.StartEngagement(ctx, user, &models.EngagementStartRequest{AdvertisementID: "AD-big"})
	require.NoError(t, err)

	_, result, err := env.engagements.CompleteEngagement(ctx, engagement.ID.String(), user)
	require.NoError(t, err)
	assert.Len(t, result.Tickets, 4)
}

func TestCompleteEngagementOfAnotherUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createAdvertisement(t, "AD-7", models.EngagementTypeView, 1)

	engagement, err := env.engagements.StartEngagement(ctx, uuid.New(), &models.EngagementStartRequest{AdvertisementID: "AD-7"})
	require.NoError(t, err)

	_, _, err = env.engagements.CompleteEngagement(ctx, engagement.ID.String(), uuid.New())
	assert.True(t, errors.HasCode(err, errors.CodeForbidden))
}

func TestAbandonedEngagementEarnsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.createAdvertisement(t, "AD-9", models.EngagementTypeCompletion, 3)

	engagement, err := env.engagements.StartEngagement(ctx, user, &models.EngagementStartRequest{AdvertisementID: "AD-9"})
	require.NoError(t, err)

	abandoned, err := env.engagements.AbandonEngagement(ctx, engagement.ID.String(), user)
	require.NoError(t, err)
	assert.Equal(t, models.EngagementStatusAbandoned, abandoned.Status)

	_, _, err = env.engagements.CompleteEngagement(ctx, engagement.ID.String(), user)
	assert.True(t, errors.HasCode(err, ErrCodeEngagementNotStarted))

	_, err = env.engagements.AbandonEngagement(ctx, engagement.ID.String(), user)
	assert.True(t, errors.HasCode(err, ErrCodeEngagementNotStarted))
}
