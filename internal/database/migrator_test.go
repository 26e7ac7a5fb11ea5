package database

import (
	"testing"
	"testing/fstest"

	"agency-crm/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingMigrations(t *testing.T) {
	files := fstest.MapFS{
		"002_tasks.sql": {Data: []byte("SELECT 2;")},
		"001_init.sql":  {Data: []byte("SELECT 1;")},
		"900_reset.sql": {Data: []byte("DROP SCHEMA public;")},
		"README.md":     {Data: []byte("notes")},
		"archive/x.sql": {Data: []byte("SELECT 3;")},
	}

	pending, err := PendingMigrations(files, map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_tasks.sql"}, pending)

	pending, err = PendingMigrations(files, map[string]bool{"001_init.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"002_tasks.sql"}, pending)
}

func TestEmbeddedSchema(t *testing.T) {
	pending, err := PendingMigrations(migrations.FS, nil)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	assert.Equal(t, "001_init.sql", pending[0])
}
