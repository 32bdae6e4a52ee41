package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cliNow = time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC)

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_PATH", filepath.Join(dir, "data"))
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("DAY_BOUNDARY_HOUR", "4")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS_PATH", "")
	t.Setenv("GOOGLE_SHEET_DATABASE_ID", "")
	t.Setenv("NUTRITRACK_TUNING_FILE", "")
	t.Setenv("NUTRITRACK_USER", "")
	return filepath.Join(dir, "missing.env")
}

func run(t *testing.T, envFile string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(func() time.Time { return cliNow })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--env-file", envFile}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootHelp(t *testing.T) {
	cmd := newRootCmd(time.Now)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "report")
}

func TestLogDayEditDelete(t *testing.T) {
	env := setupEnv(t)

	out, err := run(t, env, "log", "--type", "breakfast", "--name", "oatmeal", "--calories", "300", "--protein", "10", "--fat", "5", "--carbs", "54", "--weight", "1 bowl")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Logged oatmeal on 2025-05-20 (meal #0)")
	assert.Contains(t, out, "Total: 300 kcal")

	out, err = run(t, env, "log", "--name", "chips", "--calories", "150", "--at", "2025-05-21T01:00:00Z")
	require.NoError(t, err, out)
	assert.Contains(t, out, "on 2025-05-20 (meal #1)")

	out, err = run(t, env, "day")
	require.NoError(t, err, out)
	assert.Contains(t, out, "oatmeal (1 bowl)")
	assert.Contains(t, out, "Total: 450 kcal")

	out, err = run(t, env, "edit", "2025-05-20", "1", "--type", "snack", "--name", "apple", "--calories", "95")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Updated meal #1")

	out, err = run(t, env, "delete", "2025-05-20", "7")
	require.NoError(t, err, out)
	assert.Contains(t, out, "nothing changed")

	out, err = run(t, env, "delete", "2025-05-20", "0")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Deleted meal #0")

	out, err = run(t, env, "day", "2025-05-20")
	require.NoError(t, err, out)
	assert.Contains(t, out, "apple")
	assert.NotContains(t, out, "oatmeal")

	out, err = run(t, env, "verify", "2025-05-20")
	require.NoError(t, err, out)
	assert.Contains(t, out, "consistent")

	out, err = run(t, env, "--user", "bob", "day", "2025-05-20")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No meals logged.")
}

func TestLogRejectsInvalidMeal(t *testing.T) {
	env := setupEnv(t)
	_, err := run(t, env, "log", "--type", "brunch", "--name", "toast", "--calories", "100")
	assert.ErrorContains(t, err, "type")

	_, err = run(t, env, "log", "--name", "toast", "--calories", "-5")
	assert.ErrorContains(t, err, "calories")

	_, err = run(t, env, "delete", "2025-05-20", "first")
	assert.ErrorContains(t, err, "invalid index")
}

func TestTargetsProgressAndReports(t *testing.T) {
	env := setupEnv(t)
	metrics := []string{"--birth-date", "1995-01-01", "--height", "180", "--weight", "80", "--sex", "male", "--activity", "moderately_active", "--goal", "lose"}

	out, err := run(t, env, append([]string{"targets"}, metrics...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Targets: 2136 kcal")
	assert.Contains(t, out, "TDEE")

	_, err = run(t, env, "progress")
	assert.Error(t, err, "no profile yet")

	out, err = run(t, env, append([]string{"targets", "--save"}, metrics...)...)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Saved profile for me")

	out, err = run(t, env, "targets")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Targets: 2136 kcal")

	_, err = run(t, env, "log", "--name", "pasta", "--calories", "2000", "--type", "dinner")
	require.NoError(t, err)

	out, err = run(t, env, "progress")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Status: ON_TARGET")
	assert.Contains(t, out, "Remaining: 136 kcal")

	out, err = run(t, env, "report", "weekly", "--day", "2025-05-21")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Weekly report 2025-05-19 to 2025-05-25")
	assert.Contains(t, out, "on target 1 of 1 days")

	out, err = run(t, env, "report", "monthly")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Monthly report 2025-05-01 to 2025-05-31")

	_, err = run(t, env, "report", "monthly", "--month", "2025/05")
	assert.Error(t, err)
}

func TestQuota(t *testing.T) {
	env := setupEnv(t)

	out, err := run(t, env, "quota")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Plan: Free")
	assert.Contains(t, out, "Used: 0 of 5 | remaining 5")
	assert.Contains(t, out, "Resets: Sun, 01 Jun 2025")

	out, err = run(t, env, "quota", "--plan", "premium")
	require.NoError(t, err, out)
	assert.Contains(t, out, "unlimited")

	_, err = run(t, env, "quota", "--plan", "gold")
	assert.Error(t, err)
}
