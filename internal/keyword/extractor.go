// Package keyword extracts the most characteristic terms of a small text
// collection with a TF-IDF weighting computed over that collection alone.
package keyword

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
)

const (
	// DefaultTopN is used when Extract is called with topN <= 0.
	DefaultTopN = 5
	// MaxFeatures caps the vocabulary; the least frequent terms are dropped first.
	MaxFeatures = 2000
	minTokenLen = 2
)

// ErrEmptyCollection is returned when there is no vocabulary to weight.
var ErrEmptyCollection = errors.New("empty text collection")

// Extractor is a stateless TF-IDF keyword extractor over unigrams and bigrams.
// The zero value is not usable; call New.
type Extractor struct {
	analyze     func([]byte) analysis.TokenStream
	maxFeatures int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFeatures overrides the vocabulary cap.
func WithMaxFeatures(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxFeatures = n
		}
	}
}

// New builds an Extractor on bleve's standard analyzer (unicode word
// segmentation, lowercasing, English stop words).
func New(opts ...Option) (*Extractor, error) {
	analyzer := bleve.NewIndexMapping().AnalyzerNamed(standard.Name)
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer %q not registered", standard.Name)
	}
	e := &Extractor{analyze: analyzer.Analyze, maxFeatures: MaxFeatures}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Terms returns the unigram and bigram terms of text in order of appearance.
// Bigrams join consecutive tokens that survived stop-word removal.
func (e *Extractor) Terms(text string) []string {
	var tokens []string
	for _, tok := range e.analyze([]byte(text)) {
		if utf8.RuneCount(tok.Term) < minTokenLen {
			continue
		}
		tokens = append(tokens, string(tok.Term))
	}
	terms := make([]string, 0, 2*len(tokens))
	terms = append(terms, tokens...)
	for i := 1; i < len(tokens); i++ {
		terms = append(terms, tokens[i-1]+" "+tokens[i])
	}
	return terms
}

// Extract returns the topN terms of texts ranked by mean TF-IDF weight,
// highest first. Equal scores are ordered reverse-lexicographically.
func (e *Extractor) Extract(texts []string, topN int) ([]string, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyCollection
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	counts := make([]map[string]int, len(texts))
	totals := make(map[string]int)
	for i, text := range texts {
		counts[i] = make(map[string]int)
		for _, term := range e.Terms(text) {
			counts[i][term]++
			totals[term]++
		}
	}
	if len(totals) == 0 {
		return nil, fmt.Errorf("%w: no terms left after stop-word removal", ErrEmptyCollection)
	}

	vocab := e.limitVocabulary(totals)
	n := float64(len(texts))
	idf := make(map[string]float64, len(vocab))
	for _, term := range vocab {
		df := 0
		for _, c := range counts {
			if c[term] > 0 {
				df++
			}
		}
		idf[term] = math.Log((1+n)/(1+float64(df))) + 1
	}

	sums := make(map[string]float64, len(vocab))
	for _, c := range counts {
		var norm float64
		for _, term := range vocab {
			w := float64(c[term]) * idf[term]
			norm += w * w
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for _, term := range vocab {
			if c[term] > 0 {
				sums[term] += float64(c[term]) * idf[term] / norm
			}
		}
	}

	sort.Slice(vocab, func(i, j int) bool {
		si, sj := sums[vocab[i]]/n, sums[vocab[j]]/n
		if si != sj {
			return si > sj
		}
		return vocab[i] > vocab[j]
	})
	if len(vocab) > topN {
		vocab = vocab[:topN]
	}
	return vocab, nil
}

// limitVocabulary keeps the maxFeatures terms with the highest collection
// frequency, breaking ties lexicographically.
func (e *Extractor) limitVocabulary(totals map[string]int) []string {
	vocab := make([]string, 0, len(totals))
	for term := range totals {
		vocab = append(vocab, term)
	}
	sort.Slice(vocab, func(i, j int) bool {
		if totals[vocab[i]] != totals[vocab[j]] {
			return totals[vocab[i]] > totals[vocab[j]]
		}
		return vocab[i] < vocab[j]
	})
	if len(vocab) > e.maxFeatures {
		vocab = vocab[:e.maxFeatures]
	}
	return vocab
}
