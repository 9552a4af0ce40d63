package docindex

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hashicorp/go-hclog"
)

// Field weights from spec §4.B: title 2x, tags 1.5x, content 1x.
const (
	weightTitle   = 2.0
	weightTags    = 1.5
	weightContent = 1.0
)

// SearchResult carries a Document plus its normalized score (lower is
// better, per §4.B), with optional type/tag post-filters already applied.
type SearchResult struct {
	Document *Document
	Score    float64
}

// searcher wraps an in-memory bleve index to provide the fuzzy,
// weighted-field search spec §4.B describes. Bleve's own relevance score
// is higher-is-better and unbounded; we invert and normalize it into
// [0, 1] (lower is better) at the boundary so the rest of the engine only
// ever sees the spec's score convention. The index is rebuilt wholesale on
// every mutation, matching §4.B's "cheap to rebuild at this scale" note.
type searcher struct {
	logger hclog.Logger

	mu  sync.RWMutex
	idx bleve.Index
}

func newSearcher(logger hclog.Logger) *searcher {
	return &searcher{logger: logger.Named("search")}
}

func newIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = "en"

	tags := bleve.NewTextFieldMapping()
	tags.Analyzer = "en"

	content := bleve.NewTextFieldMapping()
	content.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Title", title)
	docMapping.AddFieldMappingsAt("Tags", tags)
	docMapping.AddFieldMappingsAt("Content", content)
	im.AddDocumentMapping("document", docMapping)
	im.DefaultMapping = docMapping
	return im
}

type indexableDoc struct {
	Title   string
	Tags    string
	Content string
}

// rebuild replaces the in-memory bleve index with one built from docs.
func (s *searcher) rebuild(docs []*Document) error {
	idx, err := bleve.NewMemOnly(newIndexMapping())
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}

	batch := idx.NewBatch()
	for _, d := range docs {
		err := batch.Index(d.Path, indexableDoc{
			Title:   d.Title,
			Tags:    strings.Join(d.Tags, " "),
			Content: d.Content,
		})
		if err != nil {
			return fmt.Errorf("index document %s: %w", d.Path, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("commit search batch: %w", err)
	}

	s.mu.Lock()
	old := s.idx
	s.idx = idx
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// query runs a fuzzy match across title/tags/content with their spec
// weights and returns an unordered path->score map, each score normalized
// into [0,1] as 1 - score/maxScore, so lower means a better match.
func (s *searcher) query(q string) (map[string]float64, error) {
	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()
	if idx == nil {
		return map[string]float64{}, nil
	}

	titleQ := bleve.NewMatchQuery(q)
	titleQ.SetField("Title")
	titleQ.SetBoost(weightTitle)
	titleQ.SetFuzziness(2)

	tagsQ := bleve.NewMatchQuery(q)
	tagsQ.SetField("Tags")
	tagsQ.SetBoost(weightTags)
	tagsQ.SetFuzziness(1)

	contentQ := bleve.NewMatchQuery(q)
	contentQ.SetField("Content")
	contentQ.SetBoost(weightContent)
	contentQ.SetFuzziness(1)

	disjunct := bleve.NewDisjunctionQuery(titleQ, tagsQ, contentQ)
	req := bleve.NewSearchRequest(disjunct)
	req.Size = 1000

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}

	out := make(map[string]float64, len(res.Hits))
	var maxScore float64
	for _, hit := range res.Hits {
		out[hit.ID] = hit.Score
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}
	if maxScore == 0 {
		return out, nil
	}
	// Normalize into [0,1] higher-is-better, then invert to lower-is-better.
	for id, sc := range out {
		out[id] = 1.0 - (sc / maxScore)
	}
	return out, nil
}

func (idx *Index) rebuildSearch() error {
	return idx.search.rebuild(idx.All())
}

// Search runs a fuzzy search over {title, tags, content} with optional
// post-filters, per §4.B.
func (idx *Index) Search(query string, typeFilter DocType, tagFilter string, limit int) ([]SearchResult, error) {
	scores, err := idx.search.query(query)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]SearchResult, 0, len(scores))
	for _, p := range idx.order {
		score, ok := scores[p]
		if !ok {
			continue
		}
		d := idx.docs[p]
		if d == nil {
			continue
		}
		if typeFilter != "" && d.Type != typeFilter {
			continue
		}
		if tagFilter != "" && !hasTag(d.Tags, tagFilter) {
			continue
		}
		results = append(results, SearchResult{Document: d, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}
