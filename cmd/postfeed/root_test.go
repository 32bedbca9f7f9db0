package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Sternrassler/postfeed/internal/testutil"
	"github.com/Sternrassler/postfeed/pkg/feed"
	"github.com/Sternrassler/postfeed/pkg/logging"
	"github.com/Sternrassler/postfeed/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// runCommand executes the root command with args and returns stdout and stderr.
func runCommand(t *testing.T, env map[string]string, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand(envFrom(env))
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--log-level", "error"))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand(envFrom(nil))
	require.NotNil(t, cmd)
	assert.Equal(t, "postfeed", cmd.Use)

	for _, name := range []string{"list", "show", "serve"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := defaultOptions(envFrom(nil))
	assert.Equal(t, "https://jsonplaceholder.typicode.com", opts.BaseURL)
	assert.Equal(t, 20, opts.PageSize)
	assert.Empty(t, opts.RedisURL)
	assert.False(t, opts.StopOnEmptyPage)
	assert.Equal(t, logging.LevelInfo, opts.Logging.Level)

	opts = defaultOptions(envFrom(map[string]string{
		"POSTFEED_BASE_URL":      "http://localhost:3000",
		"POSTFEED_PAGE_SIZE":     "5",
		"POSTFEED_STOP_ON_EMPTY": "true",
		"REDIS_URL":              "localhost:6379",
		"LOG_LEVEL":              "debug",
	}))
	assert.Equal(t, "http://localhost:3000", opts.BaseURL)
	assert.Equal(t, 5, opts.PageSize)
	assert.True(t, opts.StopOnEmptyPage)
	assert.Equal(t, "localhost:6379", opts.RedisURL)
	assert.Equal(t, logging.LevelDebug, opts.Logging.Level)
}

func TestDefaultOptions_InvalidPageSize(t *testing.T) {
	opts := defaultOptions(envFrom(map[string]string{"POSTFEED_PAGE_SIZE": "many"}))
	assert.Equal(t, 20, opts.PageSize)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := runCommand(t, nil, "list", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestListCommand_Text(t *testing.T) {
	mock := testutil.NewMockPosts(100)
	defer mock.Close()

	stdout, _, err := runCommand(t, nil, "list", "--base-url", mock.URL(), "--count", "45")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 45)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "1  Post Title 1"))
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[44]), "45  Post Title 45"))

	// 45 rows need exactly three pages, loaded in order.
	assert.Equal(t, []int{1, 2, 3}, mock.GetPagesRequested())
}

func TestListCommand_JSON(t *testing.T) {
	mock := testutil.NewMockPosts(30)
	defer mock.Close()

	stdout, stderr, err := runCommand(t, nil, "list", "--base-url", mock.URL(), "--count", "50", "--format", "json")
	require.NoError(t, err)

	dec := json.NewDecoder(strings.NewReader(stdout))
	var rows []feed.Row
	for dec.More() {
		var row feed.Row
		require.NoError(t, dec.Decode(&row))
		rows = append(rows, row)
	}

	require.Len(t, rows, 30)
	assert.Equal(t, 30, rows[29].Record.ID)
	assert.NotEmpty(t, rows[0].Derived)
	assert.Contains(t, stderr, "end of feed after 30 rows")
}

func TestListCommand_LoadFailure(t *testing.T) {
	mock := testutil.NewMockPosts(40)
	defer mock.Close()
	mock.SetPage(2, testutil.PageOverride{StatusCode: 500, Body: "{}"})

	stdout, stderr, err := runCommand(t, nil, "list", "--base-url", mock.URL(), "--count", "40")
	require.NoError(t, err)

	assert.Len(t, strings.Split(strings.TrimRight(stdout, "\n"), "\n"), 20)
	assert.Contains(t, stderr, "load failed")
	assert.Contains(t, stderr, "status 500")
}

func TestShowCommand(t *testing.T) {
	mock := testutil.NewMockPosts(60)
	defer mock.Close()

	stdout, _, err := runCommand(t, nil, "show", "45", "--base-url", mock.URL(), "--format", "json")
	require.NoError(t, err)

	var detail record.Detail
	require.NoError(t, json.Unmarshal([]byte(stdout), &detail))
	assert.Equal(t, "Post Detail", detail.Header)
	assert.Equal(t, "46", detail.ID)
	assert.Equal(t, "Post Title 46", detail.Title)
	assert.Equal(t, []int{1, 2, 3}, mock.GetPagesRequested())
}

func TestShowCommand_OutOfRange(t *testing.T) {
	mock := testutil.NewMockPosts(10)
	defer mock.Close()

	_, _, err := runCommand(t, nil, "show", "10", "--base-url", mock.URL())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestShowCommand_InvalidIndex(t *testing.T) {
	_, _, err := runCommand(t, nil, "show", "first")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid index "first"`)
}
