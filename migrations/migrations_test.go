package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	up, err := List(Up)
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, "001_create_schema", up[0].Name)
	assert.Contains(t, up[0].SQL, "CREATE TABLE IF NOT EXISTS daily_metrics")
	assert.Contains(t, up[0].SQL, "CREATE TABLE IF NOT EXISTS weekly_metrics")

	down, err := List(Down)
	require.NoError(t, err)
	require.Len(t, down, 1)
	assert.Contains(t, down[0].SQL, "DROP TABLE IF EXISTS daily_metrics")

	_, err = List("sideways")
	assert.Error(t, err)
}
