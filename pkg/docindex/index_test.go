package docindex

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// TestIndex_BuildAndBacklinks covers spec §8 scenario 1.
func TestIndex_BuildAndBacklinks(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/knowledge/a.md", []byte("# A\nsee [[b]]"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/knowledge/b.md", []byte("# B"), 0o644))

	idx := New(fs, "/ws", nil)
	require.NoError(t, idx.Build())

	a, ok := idx.Get("knowledge/a.md")
	require.True(t, ok)
	require.Equal(t, []string{"b"}, a.Links)

	b, ok := idx.Get("knowledge/b.md")
	require.True(t, ok)
	require.Equal(t, []string{"knowledge/a.md"}, b.Backlinks)

	g := idx.Graph()
	require.Len(t, g.Links, 1)
	require.Equal(t, "knowledge/a.md", g.Links[0].Source)
	require.Equal(t, "knowledge/b.md", g.Links[0].Target)
}

func TestIndex_UnresolvedLink_NoEdge(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte("see [[missing]]"), 0o644))

	idx := New(fs, "/ws", nil)
	require.NoError(t, idx.Build())

	g := idx.Graph()
	require.Empty(t, g.Links)

	a, _ := idx.Get("a.md")
	require.Empty(t, a.Backlinks)
}

func TestIndex_ProjectsSubtreeSpecialCased(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/projects/foo/CLAUDE.md", []byte("claude doc"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/projects/foo/README.md", []byte("readme doc"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/projects/foo/deep/other.md", []byte("ignored"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/projects/foo/ignored.md", []byte("ignored too"), 0o644))

	idx := New(fs, "/ws", nil)
	require.NoError(t, idx.Build())

	require.Equal(t, 2, idx.Count())
	_, ok := idx.Get("projects/foo/CLAUDE.md")
	require.True(t, ok)
	_, ok = idx.Get("projects/foo/README.md")
	require.True(t, ok)
}

func TestIndex_SkipsExcludedDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/knowledge/a.md", []byte("kept"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/node_modules/pkg/a.md", []byte("skip"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/.hidden/a.md", []byte("skip"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/.git/a.md", []byte("skip"), 0o644))

	idx := New(fs, "/ws", nil)
	require.NoError(t, idx.Build())
	require.Equal(t, 1, idx.Count())
}

func TestIndex_ReindexIdempotence(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte("# A\nsee [[b]]"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/b.md", []byte("# B"), 0o644))

	idx := New(fs, "/ws", nil)
	require.NoError(t, idx.Build())
	first := idx.All()

	require.NoError(t, idx.Build())
	second := idx.All()

	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].Path, second[i].Path)
		require.Equal(t, first[i].Links, second[i].Links)
		require.Equal(t, first[i].Backlinks, second[i].Backlinks)
	}
}

func TestIndex_RemoveDocument(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte("# A\nsee [[b]]"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/b.md", []byte("# B"), 0o644))

	idx := New(fs, "/ws", nil)
	require.NoError(t, idx.Build())

	require.NoError(t, idx.RemoveDocument("b.md"))
	_, ok := idx.Get("b.md")
	require.False(t, ok)

	a, _ := idx.Get("a.md")
	require.Equal(t, []string{"b"}, a.Links) // raw link unaffected, only resolution/backlinks change
	g := idx.Graph()
	require.Empty(t, g.Links)
}

func TestIndex_EmptyWorkspace(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/ws", 0o755))

	idx := New(fs, "/ws", nil)
	require.NoError(t, idx.Build())
	require.Equal(t, 0, idx.Count())

	g := idx.Graph()
	require.Empty(t, g.Nodes)
	require.Empty(t, g.Links)
}

func TestIndex_Search_WeightsTitleOverContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/ws/a.md", []byte("---\ntitle: Rocket Launch\n---\nunrelated body text"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/ws/b.md", []byte("---\ntitle: Unrelated\n---\nmentions rocket once in passing"), 0o644))

	idx := New(fs, "/ws", nil)
	require.NoError(t, idx.Build())

	results, err := idx.Search("rocket", "", "", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "a.md", results[0].Document.Path)
}
