package config_test

import (
	"entrypass/internal/config"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_BACKEND", "DEFAULT_TEAM_SIZE", "EVENT_NAME", "QR_SECRET_KEY", "KAFKA_BROKERS", "REPAIR_MISSING_PASSES", "IMPORT_LOCK_TTL_MINUTES"} {
		t.Setenv(key, "")
	}

	cfg := config.Load()

	assert.Equal(t, config.StoreJSON, cfg.Store.Backend)
	assert.Equal(t, 3, cfg.Import.DefaultTeamSize)
	assert.Equal(t, 4, cfg.Import.MaxTeamMembers)
	assert.True(t, cfg.Import.RepairMissingPasses)
	assert.Equal(t, 30*time.Minute, cfg.Import.LockTTL)
	assert.Equal(t, "HACKFEST2K26", cfg.Event.Name)
	assert.Equal(t, "20 Feb 9:00 AM - 21 Feb 9:00 AM", cfg.Event.Slot)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.UsingDevSecret())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("DEFAULT_TEAM_SIZE", "5")
	t.Setenv("MAX_TEAM_MEMBERS", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("QR_SECRET_KEY", "prod-secret")

	cfg := config.Load()

	assert.Equal(t, config.StoreRedis, cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Import.DefaultTeamSize)
	assert.Equal(t, 4, cfg.Import.MaxTeamMembers)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.UsingDevSecret())
}
