package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanlanch/colorbook/pkg/store/storetest"
	"github.com/jordanlanch/colorbook/pkg/subscription"
)

func TestSweepExpired(t *testing.T) {
	s := storetest.Open(t)
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	expired := storetest.CreateUser(t, s,
		storetest.WithTier(subscription.TierPro, subscription.StatusActive),
		storetest.WithExpiry(now.Add(-time.Hour)))
	current := storetest.CreateUser(t, s,
		storetest.WithTier(subscription.TierEnterprise, subscription.StatusActive),
		storetest.WithExpiry(now.Add(time.Hour)))
	free := storetest.CreateUser(t, s)

	cm := NewCronManager(s, nil)
	cm.now = func() time.Time { return now }

	n, err := cm.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	snap, err := s.GetSubscription(context.Background(), expired.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierFree, snap.Tier)
	assert.Equal(t, subscription.StatusExpired, snap.Status)

	snap, err = s.GetSubscription(context.Background(), current.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.TierEnterprise, snap.Tier)

	snap, err = s.GetSubscription(context.Background(), free.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, snap.Status)

	// Already downgraded rows are not counted again
	n, err = cm.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type failingStore struct{}

func (failingStore) DowngradeAllExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("database is down")
}

func TestSweepExpired_StoreError(t *testing.T) {
	cm := NewCronManager(failingStore{}, nil)
	_, err := cm.SweepExpired(context.Background())
	assert.EqualError(t, err, "database is down")
}

func TestSetupJobs(t *testing.T) {
	cm := NewCronManager(failingStore{}, nil)
	require.NoError(t, cm.SetupJobs("@every 1h"))
	assert.Len(t, cm.cron.Entries(), 1)

	err := cm.SetupJobs("not a schedule")
	assert.ErrorContains(t, err, "invalid expiry sweep schedule")

	cm.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	cm.Stop(ctx)
}
