// ABOUTME: Tests for JSON, YAML and Markdown export.
// ABOUTME: Verifies tokens stay out of exports and per-user filtering.
package storage

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGetAllData(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	u := populate(t, db)
	createUser(t, db)

	all, err := GetAllData(ctx, db, ExportOptions{})
	require.NoError(t, err)
	assert.Len(t, all.Users, 2)
	assert.Equal(t, "bloom", all.Tool)

	one, err := GetAllData(ctx, db, ExportOptions{UserID: u.ID.String()[:8]})
	require.NoError(t, err)
	require.Len(t, one.Users, 1)
	assert.Len(t, one.Users[0].Averages, 2)
	assert.Len(t, one.Users[0].History, 1)
	assert.Len(t, one.Users[0].Anomalies, 1)

	later, err := GetAllData(ctx, db, ExportOptions{UserID: u.ID.String(), Since: "2025-07-01"})
	require.NoError(t, err)
	assert.Empty(t, later.Users[0].Averages)
}

func TestExportJSONOmitsTokens(t *testing.T) {
	db := setupTestDB(t)
	populate(t, db)

	data, err := GetAllData(context.Background(), db, ExportOptions{})
	require.NoError(t, err)
	out, err := ExportJSON(data)
	require.NoError(t, err)

	assert.NotContains(t, string(out), "refresh")
	assert.Contains(t, string(out), `"avg_steps": 5000`)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "1.0", decoded["version"])
}

func TestExportYAML(t *testing.T) {
	db := setupTestDB(t)
	populate(t, db)

	data, err := GetAllData(context.Background(), db, ExportOptions{})
	require.NoError(t, err)
	out, err := ExportYAML(data)
	require.NoError(t, err)

	var decoded struct {
		Users []struct {
			Averages []map[string]any `yaml:"averages"`
		} `yaml:"users"`
	}
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	require.Len(t, decoded.Users, 1)
	require.NotEmpty(t, decoded.Users[0].Averages)
	assert.Contains(t, decoded.Users[0].Averages[0], "avg_steps")
}

func TestExportMarkdown(t *testing.T) {
	db := setupTestDB(t)
	u := populate(t, db)

	data, err := GetAllData(context.Background(), db, ExportOptions{})
	require.NoError(t, err)
	md := ExportMarkdown(data)

	assert.True(t, strings.HasPrefix(md, "# Bloom Export - "))
	assert.Contains(t, md, "## "+u.FitbitID)
	assert.Contains(t, md, "### Daily averages")
	assert.Contains(t, md, "### Monthly history")
	assert.Contains(t, md, "| 2025-06-01 | 1D | 5000.00 |")
	assert.Contains(t, md, "### Anomalies")
}
