package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"invoria/internal/database/testutil"
	"invoria/internal/models"
)

var testEncryptionKey = []byte("0123456789abcdef0123456789abcdef")

func TestEmailAccountServiceRejectsBadKey(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	_, err := NewEmailAccountService(db, []byte("short"))
	require.Error(t, err)
}

func TestEmailAccountConnectEncryptsRefreshToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewEmailAccountService(db, testEncryptionKey)
	require.NoError(t, err)
	owner := createTestUser(t, db, "owner@example.com")

	account, err := svc.Connect(context.Background(), ConnectInput{
		OwnerUserID:  owner.ID,
		Email:        "Mailbox@Example.com",
		RefreshToken: "refresh-secret",
	})
	require.NoError(t, err)
	require.Equal(t, "mailbox@example.com", account.Email)
	require.Equal(t, "gmail", account.Provider)
	require.NotEmpty(t, account.RefreshTokenEnc)
	require.NotContains(t, account.RefreshTokenEnc, "refresh-secret")

	plaintext, err := svc.RefreshToken(account)
	require.NoError(t, err)
	require.Equal(t, "refresh-secret", plaintext)
}

func TestEmailAccountReconnectUpdatesInsteadOfDuplicating(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewEmailAccountService(db, testEncryptionKey)
	require.NoError(t, err)
	owner := createTestUser(t, db, "owner@example.com")
	ctx := context.Background()

	first, err := svc.Connect(ctx, ConnectInput{OwnerUserID: owner.ID, Email: "box@example.com", RefreshToken: "one"})
	require.NoError(t, err)

	second, err := svc.Connect(ctx, ConnectInput{OwnerUserID: owner.ID, Email: "box@example.com", RefreshToken: "two"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	plaintext, err := svc.RefreshToken(second)
	require.NoError(t, err)
	require.Equal(t, "two", plaintext)

	var count int64
	require.NoError(t, db.Model(&models.EmailAccount{}).Where("user_id = ?", owner.ID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestEmailAccountInviteDrivenConnect(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewEmailAccountService(db, testEncryptionKey)
	require.NoError(t, err)
	inviter := createTestUser(t, db, "inviter@example.com")
	ctx := context.Background()

	account, err := svc.Connect(ctx, ConnectInput{
		OwnerUserID:      inviter.ID,
		Email:            "invited@example.com",
		RefreshToken:     "tok",
		InviterUserID:    &inviter.ID,
		ConnectedByToken: true,
	})
	require.NoError(t, err)
	require.True(t, account.ConnectedByToken)
	require.Equal(t, inviter.ID, *account.InviterUserID)
	// The mailbox lands in the inviter's workspace.
	require.Equal(t, inviter.ID, account.UserID)
}

func TestEmailAccountListAndDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	svc, err := NewEmailAccountService(db, testEncryptionKey)
	require.NoError(t, err)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")
	ctx := context.Background()

	account, err := svc.Connect(ctx, ConnectInput{OwnerUserID: owner.ID, Email: "a@example.com"})
	require.NoError(t, err)
	_, err = svc.Connect(ctx, ConnectInput{OwnerUserID: owner.ID, Email: "b@example.com"})
	require.NoError(t, err)

	accounts, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	// Only the owner can delete.
	err = svc.Delete(ctx, other.ID, account.ID)
	require.ErrorIs(t, err, ErrEmailAccountNotFound)
	require.NoError(t, svc.Delete(ctx, owner.ID, account.ID))

	accounts, err = svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}

func TestEmailAccountConnectClockInjection(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	fixed := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewEmailAccountService(db, testEncryptionKey,
		WithEmailAccountClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	owner := createTestUser(t, db, "owner@example.com")

	account, err := svc.Connect(context.Background(), ConnectInput{OwnerUserID: owner.ID, Email: "c@example.com"})
	require.NoError(t, err)
	require.True(t, account.ConnectedAt.Equal(fixed))
}
