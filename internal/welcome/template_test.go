package welcome

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender_DefaultTemplate(t *testing.T) {
	out := Render(DefaultTemplate, "@newuser", `"Test Server"`)
	require.True(t, strings.HasPrefix(out, "**@newuser مرحبًا بك في السيرفر**\n\"Test Server\""))
	require.NotContains(t, out, SlotMember)
	require.NotContains(t, out, SlotGroup)
	require.True(t, strings.HasSuffix(out, "cfx.re/join/m8mdxq"))
}

func TestRender_KeepsOtherBytes(t *testing.T) {
	tmpl := "{member_mention}|{x}|{server_name}|{member_mention}"
	require.Equal(t, "A|{x}|G|A", Render(tmpl, "A", "G"))
}

func TestRender_ValuesAreNotRescanned(t *testing.T) {
	got := Render("{member_mention} in {server_name}", "{server_name}", "{member_mention}")
	require.Equal(t, "{server_name} in {member_mention}", got)
}

func TestLoadTemplate(t *testing.T) {
	req := require.New(t)

	tmpl, err := LoadTemplate("", "")
	req.NoError(err)
	req.Equal(DefaultTemplate, tmpl.Text())

	tmpl, err = LoadTemplate("hi {member_mention}", "ignored.txt")
	req.NoError(err)
	req.Equal("hi {member_mention}", tmpl.Text())

	path := filepath.Join(t.TempDir(), "welcome.txt")
	req.NoError(os.WriteFile(path, []byte("hello {member_mention}\n"), 0o644))
	tmpl, err = LoadTemplate("", path)
	req.NoError(err)
	req.Equal("hello @x", tmpl.Render("@x", "g"))

	_, err = LoadTemplate("", filepath.Join(t.TempDir(), "missing.txt"))
	req.Error(err)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	req.NoError(os.WriteFile(empty, []byte("\n"), 0o644))
	_, err = LoadTemplate("", empty)
	req.Error(err)
}
