package ics

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	appLog "minibridge/internal/log"
	"minibridge/internal/model"
)

// DefaultCacheEntries bounds the parse cache when no size is configured.
const DefaultCacheEntries = 128

// ParserOptions configures a Parser.
type ParserOptions struct {
	// Extractor picks teacher names out of descriptions. Nil means
	// RegexExtractor.
	Extractor Extractor

	// CacheEntries bounds the number of decoded files kept in memory.
	// Zero means DefaultCacheEntries, a negative value disables caching.
	CacheEntries int
}

// Parser decodes uploads into Documents. Decoded files are memoized by a
// SHA-256 of their name and content; entries are never modified once
// stored, so a Parser is safe for concurrent use.
type Parser struct {
	extractor Extractor

	cache  *lru.Cache[string, *Document]
	flight singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// CacheStats is a snapshot of the parse cache counters.
type CacheStats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

func NewParser(opts ParserOptions) (*Parser, error) {
	p := &Parser{extractor: opts.Extractor}
	if p.extractor == nil {
		p.extractor = RegexExtractor{}
	}

	size := opts.CacheEntries
	if size == 0 {
		size = DefaultCacheEntries
	}
	if size > 0 {
		c, err := lru.New[string, *Document](size)
		if err != nil {
			return nil, err
		}
		p.cache = c
	}
	return p, nil
}

// Mode reports the active extraction convention.
func (p *Parser) Mode() ExtractMode {
	return p.extractor.Mode()
}

// Stats returns the current cache counters.
func (p *Parser) Stats() CacheStats {
	st := CacheStats{
		Hits:   p.hits.Load(),
		Misses: p.misses.Load(),
	}
	if p.cache != nil {
		st.Entries = p.cache.Len()
	}
	return st
}

// Purge drops every cached document.
func (p *Parser) Purge() {
	if p.cache == nil {
		return
	}
	n := p.cache.Len()
	p.cache.Purge()
	appLog.Info("parse cache purged", "entries", n, "hits", p.hits.Load(), "misses", p.misses.Load())
}

func (p *Parser) cached(u model.Upload) (*Document, error) {
	if p.cache == nil {
		p.misses.Add(1)
		return p.decode(u)
	}

	key := cacheKey(u)
	if doc, ok := p.cache.Get(key); ok {
		p.hits.Add(1)
		return doc, nil
	}

	// Concurrent requests for the same content share one decode; callers
	// that only waited on it count as hits.
	ran := false
	v, err, _ := p.flight.Do(key, func() (any, error) {
		ran = true
		if doc, ok := p.cache.Get(key); ok {
			p.hits.Add(1)
			return doc, nil
		}
		p.misses.Add(1)
		doc, err := p.decode(u)
		if err != nil {
			return nil, err
		}
		p.cache.Add(key, doc)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	if !ran {
		p.hits.Add(1)
	}
	return v.(*Document), nil
}

// cacheKey hashes the filename together with the body: the filename feeds
// the promotion/class labels, so equal bytes under another name must not
// share an entry.
func cacheKey(u model.Upload) string {
	h := sha256.New()
	h.Write([]byte(u.Filename))
	h.Write([]byte{0})
	h.Write(u.Body)
	return hex.EncodeToString(h.Sum(nil))
}
