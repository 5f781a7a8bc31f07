package sandbox

import (
	"bytes"
	"io"
	"strings"

	"github.com/docker/docker/pkg/stdcopy"
)

// demuxLogs splits a multiplexed Docker log stream into stdout and
// stderr and strips residual control bytes. Containers started without a
// TTY multiplex both streams over one connection with 8-byte frame
// headers; stdcopy undoes that framing.
func demuxLogs(reader io.Reader) (stdout, stderr string) {
	var stdoutBuf, stderrBuf bytes.Buffer

	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, reader); err != nil {
		// Stream was not multiplexed (TTY container) or truncated: fall
		// back to treating whatever we read so far as stdout.
		raw := stdoutBuf.String() + stderrBuf.String()
		return stripControl(raw), ""
	}

	return stripControl(stdoutBuf.String()), stripControl(stderrBuf.String())
}

// stripControl removes non-printable control bytes, keeping text,
// newlines and tabs.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}
