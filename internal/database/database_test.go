package database_test

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanban/internal/database"
)

func TestSource_PairsEveryMigration(t *testing.T) {
	src, err := database.Source()
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	for {
		up, _, err := src.ReadUp(version)
		require.NoError(t, err, "version %d has no up migration", version)
		up.Close()
		down, _, err := src.ReadDown(version)
		require.NoError(t, err, "version %d has no down migration", version)
		down.Close()

		next, err := src.Next(version)
		if err != nil {
			break
		}
		version = next
	}
}

func TestSource_InitialSchema(t *testing.T) {
	src, err := database.Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	r, _, err := src.ReadUp(first)
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)

	sql := string(body)
	for _, table := range []string{"users", "boards", "board_members", "lists", "cards", "comments"} {
		assert.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
	assert.Contains(t, sql, "ON DELETE CASCADE")
}

func TestSource_LabelsAndChecklists(t *testing.T) {
	src, err := database.Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	second, err := src.Next(first)
	require.NoError(t, err)

	r, _, err := src.ReadUp(second)
	require.NoError(t, err)
	defer r.Close()
	body, err := io.ReadAll(r)
	require.NoError(t, err)

	sql := string(body)
	for _, table := range []string{"labels", "card_labels", "checklists", "checklist_items"} {
		assert.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" "), table)
	}
	assert.Contains(t, sql, "PRIMARY KEY (card_id, label_id)")
}
