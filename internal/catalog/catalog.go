package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/hpungsan/rpv/internal/errors"
)

// Lang identifies a supported summary language.
type Lang string

const (
	LangEN Lang = "en"
	LangJA Lang = "ja"
)

// Langs lists all supported languages.
var Langs = []Lang{LangEN, LangJA}

// ParseLang normalizes a language string, falling back to English.
func ParseLang(s string) Lang {
	if Lang(strings.ToLower(strings.TrimSpace(s))) == LangJA {
		return LangJA
	}
	return LangEN
}

// PaperID is a paper identifier. The catalog file may encode ids as JSON
// strings or numbers; both decode to the string form.
type PaperID string

// UnmarshalJSON accepts both string and numeric ids.
func (p *PaperID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = PaperID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PaperID(n.String())
	return nil
}

// Paper is one immutable catalog record. Missing text fields decode to "".
type Paper struct {
	ID      PaperID `json:"id"`
	Title   string  `json:"title"`
	Authors string  `json:"authors"`
	Year    int     `json:"year"`
	Journal string  `json:"journal"`
	URL     string  `json:"url"`

	SummaryEN string `json:"summary_english"`
	SummaryJA string `json:"summary_japanese"`
	ProblemEN string `json:"problem_english"`
	ProblemJA string `json:"problem_japanese"`
	MethodEN  string `json:"method_english"`
	MethodJA  string `json:"method_japanese"`
	ResultsEN string `json:"results_english"`
	ResultsJA string `json:"results_japanese"`

	blobs map[Lang]string
}

// Summary returns the summary text for the given language.
func (p *Paper) Summary(lang Lang) string {
	if lang == LangJA {
		return p.SummaryJA
	}
	return p.SummaryEN
}

// Problem returns the problem text for the given language.
func (p *Paper) Problem(lang Lang) string {
	if lang == LangJA {
		return p.ProblemJA
	}
	return p.ProblemEN
}

// Method returns the method text for the given language.
func (p *Paper) Method(lang Lang) string {
	if lang == LangJA {
		return p.MethodJA
	}
	return p.MethodEN
}

// Results returns the results text for the given language.
func (p *Paper) Results(lang Lang) string {
	if lang == LangJA {
		return p.ResultsJA
	}
	return p.ResultsEN
}

// SearchBlob returns the precomputed lowercase search text for a language.
func (p *Paper) SearchBlob(lang Lang) string {
	return p.blobs[lang]
}

// buildBlobs precomputes the per-language search blobs.
// Each blob is the lowercase join of every searchable field for that language.
func (p *Paper) buildBlobs() {
	p.blobs = make(map[Lang]string, len(Langs))
	for _, lang := range Langs {
		parts := []string{
			p.Title,
			p.Authors,
			p.Journal,
			p.Summary(lang),
			p.Problem(lang),
			p.Method(lang),
			p.Results(lang),
		}
		p.blobs[lang] = strings.ToLower(strings.Join(parts, " "))
	}
}

// Catalog is the immutable, ordered set of papers loaded at startup.
type Catalog struct {
	papers []Paper
	index  map[PaperID]int
}

// New builds a catalog from a decoded paper list, computing search blobs
// and the id index. Order is preserved.
func New(papers []Paper) *Catalog {
	c := &Catalog{
		papers: papers,
		index:  make(map[PaperID]int, len(papers)),
	}
	for i := range c.papers {
		c.papers[i].buildBlobs()
		c.index[c.papers[i].ID] = i
	}
	return c
}

// Load reads the catalog from a local file or an http(s) URL.
// Any failure (unreachable source, malformed JSON) is fatal: no partial catalog.
func Load(source string) (*Catalog, error) {
	var data []byte
	var err error

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = fetchURL(source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, errors.NewCatalogLoadFailed(source, err)
	}

	var papers []Paper
	if err := json.Unmarshal(data, &papers); err != nil {
		return nil, errors.NewCatalogLoadFailed(source, err)
	}

	return New(papers), nil
}

func fetchURL(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Len returns the number of papers.
func (c *Catalog) Len() int {
	return len(c.papers)
}

// Papers returns the papers in catalog order. Callers must not mutate.
func (c *Catalog) Papers() []Paper {
	return c.papers
}

// ByID returns the paper with the given id, or nil if absent.
func (c *Catalog) ByID(id PaperID) *Paper {
	i, ok := c.index[id]
	if !ok {
		return nil
	}
	return &c.papers[i]
}

// IndexOf returns the catalog position of a paper, or -1 if absent.
func (c *Catalog) IndexOf(id PaperID) int {
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}
