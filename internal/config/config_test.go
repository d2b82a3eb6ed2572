package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "5000", cfg.Server.Port)
	require.Equal(t, DriverMemory, cfg.Store.Driver)
	require.Equal(t, 2*time.Second, cfg.Collab.AutosaveMinInterval)
	require.Equal(t, DefaultPalette, cfg.Collab.Palette)
	require.Equal(t, "", cfg.Redis.Addr())
	require.Equal(t, 60*time.Second, cfg.WebSocket.PongWait)
	require.Less(t, cfg.WebSocket.PingPeriod, cfg.WebSocket.PongWait)
}

func TestLoadConfig_Mongo(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("MONGODB_DATABASE", "docsync_test")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("PRESENCE_PALETTE", "#000000, #ffffff ,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, DriverMongo, cfg.Store.Driver)
	require.Equal(t, "docsync_test", cfg.MongoDB.Database)
	require.Equal(t, "localhost:6380", cfg.Redis.Addr())
	require.Equal(t, []string{"#000000", "#ffffff"}, cfg.Collab.Palette)
}

func TestLoadConfig_MissingDriverSettings(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverMongo)
	t.Setenv("MONGODB_URI", "")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("STORE_DRIVER", DriverCouch)
	t.Setenv("COUCHDB_URL", "")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("STORE_DRIVER", "postgres")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "unknown STORE_DRIVER")
}
