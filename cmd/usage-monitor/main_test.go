package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/usage-monitor/pkg/aggregator"
	"github.com/0xmhha/usage-monitor/pkg/config"
	"github.com/0xmhha/usage-monitor/pkg/discovery"
)

const testSessionID = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"

const (
	lineSonnet = `{"timestamp":"2024-01-15T10:30:00Z","type":"assistant","sessionId":"a1b2c3d4-e5f6-7890-abcd-ef1234567890","cwd":"/work/app","requestId":"req_1","message":{"id":"msg_1","model":"claude-3-5-sonnet-20241022","usage":{"input_tokens":1000,"output_tokens":500}},"costUSD":0.05}`
	lineOpus   = `{"timestamp":"2024-01-16T11:00:00Z","type":"assistant","sessionId":"a1b2c3d4-e5f6-7890-abcd-ef1234567890","cwd":"/work/app","requestId":"req_2","message":{"id":"msg_2","model":"claude-3-opus-20240229","usage":{"input_tokens":200,"output_tokens":100}}}`
	lineUser   = `{"timestamp":"2024-01-16T10:59:00Z","type":"user","message":{"role":"user","content":"hi"}}`
)

// fixture is a Claude directory with one session log and a config file
// pointing every path into a temp dir.
type fixture struct {
	dir        string
	configPath string
	logPath    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	for _, key := range []string{
		config.EnvClaudeConfigDir, config.EnvConfigPath, config.EnvDBPath,
		config.EnvSQLitePath, config.EnvLogLevel, config.EnvCostMode, config.EnvHoursBack,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	dir := t.TempDir()
	projectDir := filepath.Join(dir, "claude", "projects", "-work-app")
	require.NoError(t, os.MkdirAll(projectDir, 0700))

	logPath := filepath.Join(projectDir, testSessionID+".jsonl")
	content := strings.Join([]string{lineSonnet, lineUser, lineOpus, lineSonnet}, "\n") + "\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0600))

	cfg := config.Default()
	cfg.ClaudeConfigDirs = []string{filepath.Join(dir, "claude")}
	cfg.Usage.CostMode = "calculate"
	cfg.Storage.DBPath = filepath.Join(dir, "offsets.db")
	cfg.Storage.SQLitePath = filepath.Join(dir, "usage.sqlite")
	cfg.Logging.Level = "error"
	cfg.Display.ColorEnabled = false

	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(cfg, configPath))

	return &fixture{dir: dir, configPath: configPath, logPath: logPath}
}

// run executes the CLI with the fixture's config and returns stdout.
func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := f.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestDailyCommand_JSON(t *testing.T) {
	f := newFixture(t)

	var rows []aggregator.DailyRollup
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "daily", "--format", "json")), &rows))

	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-15", rows[0].Date)
	assert.Equal(t, "claude-3-5-sonnet", rows[0].Model)
	assert.Equal(t, 1500, rows[0].Tokens.Total())
	assert.Equal(t, 1, rows[0].EntryCount, "duplicate line must be counted once")
	assert.InDelta(t, 0.0105, rows[0].CostUSD, 1e-9)
	assert.Equal(t, "2024-01-16", rows[1].Date)
	assert.Equal(t, "claude-3-opus", rows[1].Model)
}

func TestDailyCommand_DateBounds(t *testing.T) {
	f := newFixture(t)

	var rows []aggregator.DailyRollup
	out := f.mustRun(t, "daily", "--format", "json", "--since", "2024-01-16")
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-01-16", rows[0].Date)

	_, err := f.run(t, "daily", "--since", "16/01/2024")
	assert.Error(t, err)

	_, err = f.run(t, "daily", "--since", "2024-02-01", "--until", "2024-01-01")
	assert.Error(t, err)
}

func TestMonthlyCommand_JSON(t *testing.T) {
	f := newFixture(t)

	var rows []aggregator.MonthlyRollup
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "monthly", "--format", "json")), &rows))

	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01", rows[0].Key())
	assert.Equal(t, "claude-3-5-sonnet", rows[0].Model)
	assert.Equal(t, "claude-3-opus", rows[1].Model)
}

func TestSummaryAndModels(t *testing.T) {
	f := newFixture(t)

	var summary aggregator.Summary
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "summary", "--format", "json")), &summary))
	assert.Equal(t, 2, summary.EntryCount)
	assert.Equal(t, 1800, summary.Tokens.Total())
	assert.InDelta(t, 0.021, summary.CostUSD, 1e-9)

	var models []aggregator.ModelBreakdown
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "models", "--format", "json")), &models))
	assert.Len(t, models, 2)
}

func TestCostModeFlag(t *testing.T) {
	f := newFixture(t)

	var summary aggregator.Summary
	out := f.mustRun(t, "summary", "--format", "json", "--cost-mode", "cached")
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.InDelta(t, 0.05, summary.CostUSD, 1e-9, "cached mode uses only the recorded cost")

	_, err := f.run(t, "summary", "--cost-mode", "guess")
	assert.Error(t, err)
}

func TestBlocksCommand_JSON(t *testing.T) {
	f := newFixture(t)

	var doc struct {
		Limit  int               `json:"limit"`
		Blocks []json.RawMessage `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "blocks", "--format", "json")), &doc))
	assert.Len(t, doc.Blocks, 2, "gap blocks are hidden by default")
	assert.GreaterOrEqual(t, doc.Limit, 19000)

	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "blocks", "--format", "json", "--gaps")), &doc))
	assert.Greater(t, len(doc.Blocks), 2)

	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "blocks", "--format", "json", "--active")), &doc))
	assert.Empty(t, doc.Blocks)
}

func TestStatsCommand(t *testing.T) {
	f := newFixture(t)

	grouped := f.mustRun(t, "stats", "--group-by", "model", "--format", "simple")
	assert.Contains(t, grouped, "claude-3-5-sonnet")
	assert.Contains(t, grouped, "claude-3-opus")

	var top []aggregator.SessionStats
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "stats", "--top", "1", "--format", "json")), &top))
	require.Len(t, top, 1)
	assert.Equal(t, testSessionID, top[0].SessionID)
	assert.Equal(t, 1800, top[0].Statistics.TotalTokens)

	var stats aggregator.Statistics
	out := f.mustRun(t, "stats", "--model", "claude-3-opus", "--format", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Count)

	_, err := f.run(t, "stats", "--group-by", "weekday")
	assert.Error(t, err)
}

func TestResetTimeCommand(t *testing.T) {
	f := newFixture(t)

	var info aggregator.ResetInfo
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "reset-time", "--format", "json")), &info))
	assert.Zero(t, info.EntryCount, "events from 2024 are outside the current window")
}

func TestListCommand(t *testing.T) {
	f := newFixture(t)

	var sessions []discovery.SessionFile
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "list", "--format", "json")), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, testSessionID, sessions[0].SessionID)
	assert.Equal(t, "/work/app", sessions[0].DecodedPath)

	out := f.mustRun(t, "list", "--format", "json", "--session", "00000000-0000-0000-0000-000000000000")
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	assert.Empty(t, sessions)
}

// addScopedLogs adds a subagent log to the fixture's session and a second
// project with its own session.
func (f *fixture) addScopedLogs(t *testing.T) {
	t.Helper()

	const (
		apiSession = "b2c3d4e5-f6a7-4890-abcd-ef1234567890"
		lineAgent  = `{"timestamp":"2024-01-16T11:05:00Z","type":"assistant","sessionId":"a1b2c3d4-e5f6-7890-abcd-ef1234567890","isSidechain":true,"requestId":"req_3","message":{"id":"msg_3","model":"claude-3-5-sonnet-20241022","usage":{"input_tokens":100,"output_tokens":10}}}`
		lineAPI    = `{"timestamp":"2024-01-16T12:00:00Z","type":"assistant","sessionId":"b2c3d4e5-f6a7-4890-abcd-ef1234567890","cwd":"/work/api","requestId":"req_4","message":{"id":"msg_4","model":"claude-3-5-sonnet-20241022","usage":{"input_tokens":40,"output_tokens":10}}}`
	)

	projects := filepath.Dir(filepath.Dir(f.logPath))
	agentDir := filepath.Join(projects, "-work-app", testSessionID, "subagents")
	require.NoError(t, os.MkdirAll(agentDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(agentDir, "agent-5e6f.jsonl"), []byte(lineAgent+"\n"), 0600))

	apiDir := filepath.Join(projects, "-work-api")
	require.NoError(t, os.MkdirAll(apiDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(apiDir, apiSession+".jsonl"), []byte(lineAPI+"\n"), 0600))
}

func TestSubagentLogsAreCounted(t *testing.T) {
	f := newFixture(t)
	f.addScopedLogs(t)

	var summary aggregator.Summary
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "summary", "--format", "json")), &summary))
	assert.Equal(t, 4, summary.EntryCount)
	assert.Equal(t, 1960, summary.Tokens.Total())

	var top []aggregator.SessionStats
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "stats", "--top", "1", "--format", "json")), &top))
	require.Len(t, top, 1)
	assert.Equal(t, testSessionID, top[0].SessionID)
	assert.Equal(t, 1910, top[0].Statistics.TotalTokens, "subagent usage counts toward its session")
}

func TestProjectFlag(t *testing.T) {
	f := newFixture(t)
	f.addScopedLogs(t)

	tests := []struct {
		project string
		entries int
		tokens  int
	}{
		{"/work/app", 3, 1910},
		{"-work-api", 1, 50},
		{"/work/none", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.project, func(t *testing.T) {
			var summary aggregator.Summary
			out := f.mustRun(t, "summary", "--format", "json", "--project", tt.project)
			require.NoError(t, json.Unmarshal([]byte(out), &summary))
			assert.Equal(t, tt.entries, summary.EntryCount)
			assert.Equal(t, tt.tokens, summary.Tokens.Total())
		})
	}

	var sessions []discovery.SessionFile
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "list", "--format", "json", "-p", "/work/app")), &sessions))
	require.Len(t, sessions, 2)
	for _, s := range sessions {
		assert.Equal(t, "/work/app", s.DecodedPath)
	}
}

func TestNoSessionsIsNotAnError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.logPath))

	var rows []aggregator.DailyRollup
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "daily", "--format", "json")), &rows))
	assert.Empty(t, rows)
}

func TestSyncCommand(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.mustRun(t, "sync"), "Synced 2 new events")
	assert.Contains(t, f.mustRun(t, "sync"), "Synced 0 new events", "offsets persist between runs")

	var rows []aggregator.DailyRollup
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "daily", "--from-store", "--format", "json")), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 1500, rows[0].Tokens.Total())

	var monthly []aggregator.MonthlyRollup
	out := f.mustRun(t, "monthly", "--from-store", "--format", "json", "--since", "2024-02-01")
	require.NoError(t, json.Unmarshal([]byte(out), &monthly))
	assert.Empty(t, monthly)

	assert.Contains(t, f.mustRun(t, "sync", "--reset"), "Synced 2 new events")
}

func TestSyncRequiresHistory(t *testing.T) {
	f := newFixture(t)
	t.Setenv(config.EnvSQLitePath, "")

	_, err := f.run(t, "sync")
	assert.ErrorIs(t, err, errHistoryDisabled)
}

func TestConfigCommands(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, f.configPath+"\n", f.mustRun(t, "config", "path"))

	shown := f.mustRun(t, "config", "show")
	assert.Contains(t, shown, "cost_mode: calculate")
	assert.Contains(t, shown, "# Source: "+f.configPath)

	_, err := f.run(t, "config", "reset")
	assert.Error(t, err, "existing file needs --force")

	assert.Contains(t, f.mustRun(t, "config", "reset", "--force"), "Wrote default configuration")

	cfg, err := config.NewLoader(f.configPath).LoadFromFile(f.configPath)
	require.NoError(t, err)
	assert.Equal(t, "auto", cfg.Usage.CostMode)
}

func TestInvalidFormatFlag(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "daily", "--format", "xml")
	assert.Error(t, err)
}

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"model", []string{"model"}},
		{" model , session ,, date", []string{"model", "session", "date"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseDimensions(tt.in), tt.in)
	}
}
