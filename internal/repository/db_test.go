package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: ":memory:", want: ":memory:?_pragma=foreign_keys(1)"},
		{in: "file:campus.db?_pragma=busy_timeout(5000)", want: "file:campus.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"},
		{in: "campus.db?_pragma=foreign_keys(0)", want: "campus.db?_pragma=foreign_keys(0)"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.in))
		})
	}
}

func TestOpen_ForeignKeysOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	// no idle connections: each query runs on a freshly opened one
	db.SetMaxIdleConns(0)
	for i := 0; i < 3; i++ {
		var on int
		require.NoError(t, db.GetContext(ctx, &on, "PRAGMA foreign_keys"))
		assert.Equal(t, 1, on)
	}
}
