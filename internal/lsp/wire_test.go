package lsp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	require.NoError(t, writeFrame(&buf, body))

	got, err := readFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestReadFrameCaseInsensitiveHeader(t *testing.T) {
	raw := "content-length: 11\r\n\r\n{\"hello\":1}"
	got, err := readFrame(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)
	require.Equal(t, `{"hello":1}`, string(got))
}

func TestReadFrameMissingHeaderFails(t *testing.T) {
	raw := "\r\n{}"
	_, err := readFrame(bufio.NewReader(bytes.NewBufferString(raw)))
	require.Error(t, err)
}

func TestNormalizeIDTreatsNumberAndStringAlike(t *testing.T) {
	require.Equal(t, normalizeID([]byte(`5`)), normalizeID([]byte(`"5"`)))
}
