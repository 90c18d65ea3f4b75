package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"invoria/internal/auth"
	"invoria/internal/database/testutil"
)

func TestUserUpsertFromIdentity(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	identity := &auth.Identity{
		GoogleID: "google-123",
		Email:    "person@example.com",
		Name:     "Person",
		Picture:  "https://example.com/p.png",
	}

	user, err := svc.UpsertFromIdentity(ctx, identity)
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.NotNil(t, user.LastLoginAt)

	// A second login refreshes the profile instead of creating a new row.
	identity.Name = "Person Renamed"
	again, err := svc.UpsertFromIdentity(ctx, identity)
	require.NoError(t, err)
	require.Equal(t, user.ID, again.ID)
	require.Equal(t, "Person Renamed", again.Name)

	fetched, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "person@example.com", fetched.Email)
}

func TestUserGetByIDNotFound(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := NewUserService(db)

	_, err := svc.GetByID(context.Background(), "missing-id")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserUpsertRequiresIdentity(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc := NewUserService(db)

	_, err := svc.UpsertFromIdentity(context.Background(), nil)
	require.Error(t, err)
	_, err = svc.UpsertFromIdentity(context.Background(), &auth.Identity{})
	require.Error(t, err)
}
