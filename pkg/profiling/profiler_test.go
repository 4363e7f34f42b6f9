package profiling

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerWritesProfiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.out")
	mem := filepath.Join(dir, "mem.out")

	l := logrus.New()
	l.SetOutput(bytes.NewBuffer(nil))

	ran := false
	root := &cobra.Command{Use: "renderwatch", RunE: func(*cobra.Command, []string) error {
		ran = true
		return nil
	}}
	NewCobraProfiler(logrus.NewEntry(l)).Attach(root)
	root.SetArgs([]string{"--cpu-profile", cpu, "--mem-profile", mem})

	require.NoError(t, root.Execute())
	assert.True(t, ran)

	for _, path := range []string{cpu, mem} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
}

func TestProfilerDisabledByDefault(t *testing.T) {
	root := &cobra.Command{Use: "renderwatch", Run: func(*cobra.Command, []string) {}}
	NewCobraProfiler(logrus.NewEntry(logrus.New())).Attach(root)
	root.SetArgs([]string{})
	assert.NoError(t, root.Execute())
}
