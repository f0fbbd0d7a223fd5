package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigApply(t *testing.T) {
	p, err := pgxpool.ParseConfig("postgres://uptimer@localhost:5432/uptimer")
	require.NoError(t, err)
	defaultIdle := p.MaxConnIdleTime

	Config{
		ApplicationName: "uptimer/monitor",
		MaxConns:        7,
		MaxConnLifetime: time.Minute,
	}.apply(p)

	assert.EqualValues(t, 7, p.MaxConns)
	assert.Equal(t, time.Minute, p.MaxConnLifetime)
	assert.Equal(t, defaultIdle, p.MaxConnIdleTime)
	assert.Equal(t, "uptimer/monitor", p.ConnConfig.RuntimeParams["application_name"])
	assert.NotNil(t, p.ConnConfig.Tracer)
}

func TestStatementVerb(t *testing.T) {
	assert.Equal(t, "select", statementVerb("\n\tSELECT 1"))
	assert.Equal(t, "with", statementVerb("WITH picked AS (SELECT 1) UPDATE outbox SET status = 'x'"))
	assert.Equal(t, "query", statementVerb("   "))
}
