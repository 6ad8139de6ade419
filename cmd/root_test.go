package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/trivial-journal/internal/model"
	"github.com/Tiliavir/trivial-journal/internal/timecalc"
)

type harness struct {
	t       *testing.T
	cfgPath string
	dir     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TJ_CONFIG", "")
	t.Setenv("TJ_VIEW_COLOR", "false")
	return &harness{
		t:       t,
		cfgPath: filepath.Join(home, "config.yaml"),
		dir:     filepath.Join(home, "journal"),
	}
}

// resetFlags restores every flag to its default so that runs of the shared
// command tree do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	h.t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", h.cfgPath, "--dir", h.dir}, args...))
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, _, err := h.run(args...)
	require.NoError(h.t, err, "tj %v", args)
	return out
}

func TestWriteAndView(t *testing.T) {
	h := newHarness(t)
	today := timecalc.BucketName(time.Now())

	out := h.mustRun("write", "-m", "slept well")
	assert.Equal(t, "Saved entry to "+today+".log\n", out)
	out = h.mustRun("write", "-m", "  long day  ")
	assert.Equal(t, "Saved entry to "+today+".log\n", out)

	out = h.mustRun("view", "--no-pager")
	assert.Regexp(t, `^\[`+today+` \d\d:\d\d\] slept well\n\[`+today+` \d\d:\d\d\] long day\n$`, out)

	out = h.mustRun("view", "today")
	assert.Contains(t, out, "long day")
	out = h.mustRun("view", "1999-01-*")
	assert.Equal(t, "No entries found.\n", out)
}

func TestWriteEmptyMessageSavesNothing(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("write", "-m", " \n\t ")
	assert.Equal(t, "Nothing saved.\n", out)

	des, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Empty(t, des)
}

func TestViewShowsBucketWarnings(t *testing.T) {
	h := newHarness(t)
	h.mustRun("write", "-m", "before the crash")

	path := filepath.Join(h.dir, timecalc.BucketName(time.Now())+".log")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("--- 20")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	out := h.mustRun("view")
	assert.Contains(t, out, "before the crash\n")
	assert.Contains(t, out, "! "+timecalc.BucketName(time.Now())+": discarded 6 bytes of an incomplete trailing record\n")

	// The next append drops the incomplete record.
	h.mustRun("write", "-m", "after the crash")
	out = h.mustRun("view")
	assert.NotContains(t, out, "discarded")
	assert.Contains(t, out, "after the crash")
}

func TestViewRejectsBadDate(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("view", "13-45")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.mustRun("write", "-m", "first, with comma")
	h.mustRun("write", "-m", "second")

	out := h.mustRun("export", "--format", "json")
	var entries []model.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "first, with comma", entries[0].Body)
	assert.Equal(t, "second", entries[1].Body)

	out = h.mustRun("export")
	assert.Contains(t, out, "date,time,timestamp,body\n")
	assert.Contains(t, out, `,"first, with comma"`+"\n")

	_, _, err := h.run("export", "--format", "xml")
	assert.Error(t, err)

	out = h.mustRun("export", "--format", "json", "1999-*")
	assert.Equal(t, "[]\n", out)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("status")
	assert.Equal(t, "Journal: "+h.dir+"\nNo entries yet.\n", out)

	h.mustRun("write", "-m", "one")
	out = h.mustRun("status")
	assert.Contains(t, out, "  Entries: 1 on 1 day\n")
	assert.Contains(t, out, "Today: 1 entry.\n")
}

func TestConfigCommands(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, h.cfgPath+"\n", h.mustRun("config", "path"))
	assert.Equal(t, "auto\n", h.mustRun("config", "get", "view.pager"))

	assert.Equal(t, "view.pager = never\n", h.mustRun("config", "set", "view.pager", "never"))
	assert.Equal(t, "never\n", h.mustRun("config", "get", "view.pager"))
	assert.Contains(t, h.mustRun("config", "show"), "pager: never")

	_, _, err := h.run("config", "set", "view.pager", "sometimes")
	assert.Error(t, err)
	_, _, err = h.run("config", "get", "no.such.key")
	assert.Error(t, err)
}

func TestUsePager(t *testing.T) {
	var buf bytes.Buffer
	tests := []struct {
		mode     string
		disabled bool
		want     bool
	}{
		{"always", false, true},
		{"always", true, false},
		{"never", false, false},
		{"auto", false, false},
	}
	for _, tt := range tests {
		if got := usePager(tt.mode, tt.disabled, &buf); got != tt.want {
			t.Errorf("usePager(%q, %v) = %v, want %v", tt.mode, tt.disabled, got, tt.want)
		}
	}
}
