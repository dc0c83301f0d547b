package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 23, cfg.Pipeline.RowsPerColumn)
	assert.Equal(t, 46, cfg.Pipeline.PageCapacity)
	assert.Equal(t, 720.0, cfg.Pipeline.FullMarks)
	assert.Equal(t, []string{"Physics", "Chemistry", "Botany", "Zoology", "Biology"}, cfg.Pipeline.SubjectOrder)
	assert.Equal(t, 70.0, cfg.Pipeline.SeverityMedium)
	assert.Equal(t, 30*time.Second, cfg.Reports.ReadyTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PIPELINE_PAGE_SIZE", "20")
	t.Setenv("PERFORMANCE_CACHE_TTL", "bogus")
	t.Setenv("DB_DRIVER", "sqlite3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Pipeline.PageSize)
	assert.Equal(t, 10*time.Minute, cfg.Performance.CacheTTL)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
}

func TestParseClients(t *testing.T) {
	clients := parseClients("uploader|$2a$10$abc|admin; broken ; reader|$2a$10$def|teacher")
	require.Len(t, clients, 2)
	assert.Equal(t, ServiceClient{ID: "uploader", SecretHash: "$2a$10$abc", Role: "ADMIN"}, clients[0])
	assert.Equal(t, "TEACHER", clients[1].Role)
	assert.Nil(t, parseClients(""))
}
