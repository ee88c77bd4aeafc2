package mysql

import (
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDSN_AppendsANSIQuotes(t *testing.T) {
	dsn, err := formatDSN("app:secret@tcp(localhost:3306)/app")
	require.NoError(t, err)

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)

	// The server's own modes (STRICT_TRANS_TABLES in particular) must
	// survive: ANSI_QUOTES is concatenated, not assigned.
	assert.Equal(t, "CONCAT(@@sql_mode,',ANSI_QUOTES')", parsed.Params["sql_mode"])
	assert.True(t, parsed.ParseTime)
}

func TestFormatDSN_KeepsCallerParams(t *testing.T) {
	dsn, err := formatDSN("app:secret@tcp(localhost:3306)/app?charset=utf8mb4")
	require.NoError(t, err)

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
	assert.Contains(t, parsed.Params["sql_mode"], "ANSI_QUOTES")
}

func TestFormatDSN_InvalidDSN(t *testing.T) {
	_, err := formatDSN("not a dsn")
	assert.Error(t, err)
}
