package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/Foo", "foo"},
		{"  //Reload  ", "reload"},
		{"HEALTH", "health"},
		{"device_health", "device_health"},
		{"/", ""},
		{"a/b", "a/b"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestParse_SingleToken(t *testing.T) {
	cmd, ok := Parse("/Foo")
	require.True(t, ok)

	assert.Equal(t, "foo", cmd.Name)
	assert.Empty(t, cmd.Args)
	assert.Equal(t, "/Foo", cmd.RawText)
}

func TestParse_EmptyAndWhitespace(t *testing.T) {
	for _, in := range []string{"", " ", "\n", "\t \r\n  ", "\n\n\n"} {
		_, ok := Parse(in)
		assert.False(t, ok, "Parse(%q) should be absent", in)
	}
}

func TestParse_MarkerOnly(t *testing.T) {
	for _, in := range []string{"/", "  //  ", "/// a b"} {
		_, ok := Parse(in)
		assert.False(t, ok, "Parse(%q) should be absent", in)
	}
}

func TestParse_OnlyFirstLineCounts(t *testing.T) {
	raw := "/reload a b\nignored second line"

	cmd, ok := Parse(raw)
	require.True(t, ok)

	assert.Equal(t, "reload", cmd.Name)
	assert.Equal(t, []string{"a", "b"}, cmd.Args)
	assert.Equal(t, raw, cmd.RawText)
}

func TestParse_CRLFBody(t *testing.T) {
	cmd, ok := Parse("/check_campus_ip x\r\n\r\n-- \r\nsent from phone")
	require.True(t, ok)

	assert.Equal(t, "check_campus_ip", cmd.Name)
	assert.Equal(t, []string{"x"}, cmd.Args)
}

func TestParse_LeadingBlankLinesTrimmedAsBlock(t *testing.T) {
	raw := "\n\n   \n  /Health now  \nmore"

	cmd, ok := Parse(raw)
	require.True(t, ok)

	assert.Equal(t, "health", cmd.Name)
	assert.Equal(t, []string{"now"}, cmd.Args)
	assert.Equal(t, raw, cmd.RawText)
}

func TestParse_ArgsKeepOrderAndCase(t *testing.T) {
	cmd, ok := Parse("RUN   B  a\tC")
	require.True(t, ok)

	assert.Equal(t, "run", cmd.Name)
	assert.Equal(t, []string{"B", "a", "C"}, cmd.Args)
}
