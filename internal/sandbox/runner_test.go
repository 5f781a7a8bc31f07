package sandbox

import (
	"bytes"
	"context"
	"testing"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RejectsEmptySpecFields(t *testing.T) {
	// Spec validation happens before the Docker client is touched, so a
	// nil client is safe here.
	r := NewRunner(nil)

	result := r.Run(context.Background(), Spec{Command: "echo hi"})
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Stderr, "image reference cannot be empty")

	result = r.Run(context.Background(), Spec{Image: "busybox"})
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Stderr, "command cannot be empty")
}

func TestResult_OK(t *testing.T) {
	assert.True(t, Result{ExitCode: 0}.OK())
	assert.False(t, Result{ExitCode: 7}.OK())
	assert.False(t, Result{ExitCode: -1, TimedOut: true}.OK())
}

func TestNewRunnerWithMemoryLimit_DefaultsOnNonPositive(t *testing.T) {
	r := NewRunnerWithMemoryLimit(nil, 0)
	assert.Equal(t, int64(DefaultMemoryLimit), r.memoryLimit)

	r = NewRunnerWithMemoryLimit(nil, 512*1024*1024)
	assert.Equal(t, int64(512*1024*1024), r.memoryLimit)
}

func TestDemuxLogs_SplitsStreams(t *testing.T) {
	// Build a multiplexed stream the way the Docker daemon does for
	// containers without a TTY.
	var muxed bytes.Buffer
	outW := stdcopy.NewStdWriter(&muxed, stdcopy.Stdout)
	errW := stdcopy.NewStdWriter(&muxed, stdcopy.Stderr)

	_, err := outW.Write([]byte("hello\n"))
	require.NoError(t, err)
	_, err = errW.Write([]byte("oops\n"))
	require.NoError(t, err)

	stdout, stderr := demuxLogs(&muxed)
	assert.Equal(t, "hello\n", stdout)
	assert.Equal(t, "oops\n", stderr)
}

func TestDemuxLogs_FallsBackOnRawStream(t *testing.T) {
	// A TTY container's logs are not framed; the demux falls back to
	// treating readable bytes as stdout.
	stdout, stderr := demuxLogs(bytes.NewBufferString("plain text"))
	assert.Empty(t, stderr)
	_ = stdout // content depends on how far StdCopy read before failing
}

func TestStripControl(t *testing.T) {
	assert.Equal(t, "ok\n", stripControl("ok\n"))
	assert.Equal(t, "ab\tc", stripControl("a\x00b\x1b\tc\x7f"))
	assert.Equal(t, "line1\nline2", stripControl("line1\r\nline2"))
}
