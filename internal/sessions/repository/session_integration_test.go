package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"
	mongoMigration "tourbook/internal/migrations/mongo"
	sessionerrors "tourbook/internal/sessions/errors"
	"tourbook/internal/sessions/repository"
	"tourbook/pkg/client"
	"tourbook/pkg/config"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server only when MONGO_URI is set.
func newIntegrationConfig(t *testing.T) *config.Config {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	log := logger.Discard()
	cfg := &config.Config{
		Log:               log,
		Client:            client.NewClient(),
		MongoURI:          uri,
		MongoDatabaseName: fmt.Sprintf("tourbook_it_%d", time.Now().UnixNano()),
		MongoConnTimeout:  10 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
	}
	cfg.SetMongo()

	ctx := context.Background()
	require.NoError(t, mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, log))
	t.Cleanup(func() {
		_ = cfg.Client.Mongo.Database(cfg.MongoDatabaseName).Drop(context.Background())
		cfg.GracefulShutdown()
	})
	return cfg
}

func newSession(date string) *model.Session {
	expires := time.Now().UTC().Add(time.Hour)
	return &model.Session{
		ID:         uuid.NewString(),
		TourID:     "tour-1",
		ScheduleID: "sched-1",
		Date:       date,
		StartTime:  "09:00",
		EndTime:    "11:00",
		Capacity:   model.Capacity{Max: 10, Remaining: 10, Mode: model.PerPerson},
		Bookings:   []model.SessionBooking{},
		ExpiresAt:  &expires,
		Version:    1,
	}
}

func TestMongoSessionRepository_Integration(t *testing.T) {
	cfg := newIntegrationConfig(t)
	repo := repository.NewMongoSessionRepository(cfg)
	ctx := context.Background()

	s := newSession("2026-05-01")
	require.NoError(t, repo.Create(ctx, s))

	err := repo.Create(ctx, newSession("2026-05-01"))
	assert.ErrorIs(t, err, sessionerrors.ErrDuplicate)

	dates, err := repo.ExistingDates(ctx, "tour-1", "sched-1", "2026-05-01", "2026-05-31")
	require.NoError(t, err)
	assert.Contains(t, dates, "2026-05-01")

	capacity := model.Capacity{Max: 10, Current: 2, Remaining: 8, Mode: model.PerPerson}
	summaries := []model.SessionBooking{{BookingID: "b1", Tickets: []model.TicketLine{{VariantID: "adult", Quantity: 2}}}}
	version, err := repo.UpdateCapacity(ctx, s.ID, 1, capacity, summaries)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	booked, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, booked.ExpiresAt)

	_, err = repo.UpdateCapacity(ctx, s.ID, 1, capacity, summaries)
	assert.ErrorIs(t, err, sessionerrors.ErrVersionConflict)

	require.NoError(t, repo.Activate(ctx, s.ID))
	stored, err := repo.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ExpiresAt)
	assert.Equal(t, capacity, stored.Capacity)
	assert.Equal(t, int64(2), stored.Version)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, sessionerrors.ErrNotFound)
}
