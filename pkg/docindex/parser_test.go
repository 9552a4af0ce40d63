package docindex

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestParseFile_TitleResolution(t *testing.T) {
	fs := afero.NewMemMapFs()
	const root = "/ws"

	cases := []struct {
		name    string
		path    string
		content string
		want    string
	}{
		{
			name:    "frontmatter title wins",
			path:    "/ws/knowledge/a.md",
			content: "---\ntitle: Explicit Title\n---\n# Heading\nbody",
			want:    "Explicit Title",
		},
		{
			name:    "falls back to first heading",
			path:    "/ws/knowledge/b.md",
			content: "no frontmatter\n# First Heading\nbody",
			want:    "First Heading",
		},
		{
			name:    "falls back to filename stem",
			path:    "/ws/knowledge/my-note-file.md",
			content: "just body text",
			want:    "My Note File",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, afero.WriteFile(fs, tc.path, []byte(tc.content), 0o644))
			p := NewParser(fs, root)
			doc, err := p.ParseFile(tc.path)
			require.NoError(t, err)
			require.Equal(t, tc.want, doc.Title)
		})
	}
}

func TestParseFile_WikiLinkExtraction(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "see [[b]] and [[c|alias text]] and [[b]] again"
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte(content), 0o644))

	p := NewParser(fs, "/ws")
	doc, err := p.ParseFile("/ws/a.md")
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c"}, doc.Links)
}

func TestParseFile_TypeInference(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/task/a.md", []byte("body"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/knowledge/b.md", []byte("---\ntype: tag-index\n---\nbody"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/random/c.md", []byte("body"), 0o644))

	p := NewParser(fs, "/ws")

	a, err := p.ParseFile("/ws/task/a.md")
	require.NoError(t, err)
	require.Equal(t, TypeTask, a.Type)

	b, err := p.ParseFile("/ws/knowledge/b.md")
	require.NoError(t, err)
	require.Equal(t, TypeTag, b.Type)

	c, err := p.ParseFile("/ws/random/c.md")
	require.NoError(t, err)
	require.Equal(t, TypeOther, c.Type)
}

func TestParseFile_MalformedFrontmatter(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte("---\nunterminated"), 0o644))

	p := NewParser(fs, "/ws")
	_, err := p.ParseFile("/ws/a.md")
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "malformed-frontmatter", pe.Kind)
}

func TestBuildExcerpt_TruncatesOnWordBoundary(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "word "
	}
	excerpt := buildExcerpt(long)
	require.LessOrEqual(t, len(excerpt), 203) // 200 + 3-byte ellipsis rune
	require.Contains(t, excerpt, "…")
}

func TestBuildExcerpt_StripsMarkup(t *testing.T) {
	body := "# Heading\n```go\ncode here\n```\nSee [text](http://example.com) and **bold** and [[wiki|alias]]."
	excerpt := buildExcerpt(body)
	require.NotContains(t, excerpt, "#")
	require.NotContains(t, excerpt, "```")
	require.NotContains(t, excerpt, "**")
	require.Contains(t, excerpt, "text")
	require.Contains(t, excerpt, "alias")
}
