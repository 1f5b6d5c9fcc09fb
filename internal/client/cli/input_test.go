package cli

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("hello world\n"), "Name?", &out)
	require.NoError(t, err)
	require.Equal(t, "hello world", got)
	require.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	require.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	require.Error(t, err)
}

func TestGetMultiline(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "double enter", input: "a\nb\n\n\n", want: "a\nb"},
		{name: "crlf", input: "a\r\nb\r\n\r\n", want: "a\nb"},
		{name: "eof without blank line", input: "a\nb", want: "a\nb"},
		{name: "immediate blank", input: "\n", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := GetMultiline(rdr(tc.input), "Enter text", &out)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestGetSecret(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	var raw []byte
	readPassword = func(int) ([]byte, error) {
		raw = []byte(" tok3n \n")
		return raw, nil
	}
	var out bytes.Buffer
	got, err := GetSecret(&out, "Token")
	require.NoError(t, err)
	require.Equal(t, "tok3n", got)
	require.Equal(t, make([]byte, len(raw)), raw, "secret bytes are wiped")

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetSecret(&out, "Token")
	require.Error(t, err)
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	require.True(t, Confirm(rdr("y\n"), "Sure?", &out))
	require.True(t, Confirm(rdr("YES\n"), "Sure?", &out))
	require.False(t, Confirm(rdr("n\n"), "Sure?", &out))
	require.False(t, Confirm(rdr(""), "Sure?", &out))
}
