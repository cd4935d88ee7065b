package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voici5986/vaultsync/internal/ledger"
)

func TestNewStatusCmdStructure(t *testing.T) {
	cmd := newStatusCmd()
	assert.Equal(t, "status", cmd.Name())
	assert.NotEmpty(t, cmd.Short)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Flags().Lookup("stale"))
}

func TestPrintStatusTextShowsNeverForZeroLastSync(t *testing.T) {
	out := statusOutput{VaultRoot: "/vault", RemoteURL: "https://example.invalid"}

	var buf bytes.Buffer
	printStatusText(&buf, out)

	assert.Contains(t, buf.String(), "/vault")
	assert.Contains(t, buf.String(), "never")
}

func TestPrintStatusTextShowsLastSync(t *testing.T) {
	now := time.Now()
	out := statusOutput{
		VaultRoot:    "/vault",
		RemoteURL:    "https://example.invalid",
		LastSync:     formatTime(now),
		lastSyncTime: now,
	}

	var buf bytes.Buffer
	printStatusText(&buf, out)

	assert.Contains(t, buf.String(), "Last sync:")
	assert.NotContains(t, buf.String(), "never")
}

func TestPrintStaleTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	printStaleText(&buf, nil)
	assert.Contains(t, buf.String(), "No stale files recorded.")
}

func TestPrintStaleTextListsRecords(t *testing.T) {
	records := []ledger.StaleRecord{
		{Path: "notes/old.md", Reason: "remote deleted, local unreadable", DetectedAt: time.Now()},
	}

	var buf bytes.Buffer
	printStaleText(&buf, records)

	assert.Contains(t, buf.String(), "notes/old.md")
	assert.Contains(t, buf.String(), "remote deleted, local unreadable")
}

func TestPrintStaleJSONEncodesRecords(t *testing.T) {
	records := []ledger.StaleRecord{
		{Path: "notes/old.md", Reason: "remote deleted", DetectedAt: time.Now()},
	}

	var buf bytes.Buffer
	assert.NoError(t, printStaleJSON(&buf, records))
	assert.Contains(t, buf.String(), `"path": "notes/old.md"`)
}
