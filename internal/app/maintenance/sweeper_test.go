package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"invoria/internal/database/testutil"
	"invoria/internal/models"
	"invoria/internal/services"
)

func TestSweeperExpiresOverdueInvites(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	inviter := &models.User{GoogleID: "g-1", Email: "inviter@example.com"}
	require.NoError(t, db.Create(inviter).Error)

	now := time.Now()
	invites := services.NewInviteService(db, services.InviteServiceConfig{},
		services.WithInviteClock(func() time.Time { return now }))

	ctx := context.Background()
	_, err := invites.Create(ctx, inviter.ID, services.CreateInviteInput{
		InviteType:     models.InviteTypeAddEmailAccount,
		ExpiresInHours: 1,
	})
	require.NoError(t, err)

	sweeper := NewSweeper(invites, WithSchedule("@every 1m"))

	// Nothing is overdue yet.
	sweeper.RunOnce(ctx)
	var active int64
	require.NoError(t, db.Model(&models.InviteLink{}).
		Where("status = ?", models.InviteStatusActive).Count(&active).Error)
	require.Equal(t, int64(1), active)

	now = now.Add(2 * time.Hour)
	sweeper.RunOnce(ctx)

	var expired int64
	require.NoError(t, db.Model(&models.InviteLink{}).
		Where("status = ?", models.InviteStatusExpired).Count(&expired).Error)
	require.Equal(t, int64(1), expired)
}

func TestSweeperStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	invites := services.NewInviteService(db, services.InviteServiceConfig{})

	sweeper := NewSweeper(invites)
	require.NoError(t, sweeper.Start())

	done := sweeper.Stop()
	select {
	case <-done.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop in time")
	}
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	invites := services.NewInviteService(db, services.InviteServiceConfig{})

	sweeper := NewSweeper(invites, WithSchedule("not a cron spec"))
	require.Error(t, sweeper.Start())
}
