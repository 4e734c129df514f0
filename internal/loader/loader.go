// Package loader turns configured sources into documents.
package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"chunky/internal/domain"
)

type Config struct {
	Language          string
	UserAgent         string
	WikipediaCache    string
	WikipediaEndpoint string
	Timeout           time.Duration
}

// Sources selects what to load: Wikipedia topics and files, globs or URLs.
type Sources struct {
	Topics []string
	Files  []string
}

type Loader struct {
	wiki   *Wikipedia
	client *http.Client
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	return &Loader{
		wiki:   NewWikipedia(cfg, client, logger),
		client: client,
		logger: logger,
	}
}

// Load returns one document for the Wikipedia topics (if any) followed by one
// document per file or URL.
func (l *Loader) Load(ctx context.Context, src Sources) ([]domain.Document, error) {
	var docs []domain.Document
	if len(src.Topics) > 0 {
		text, err := l.wiki.Load(ctx, src.Topics)
		if err != nil {
			return nil, err
		}
		source := "wikipedia:" + strings.Join(src.Topics, "|")
		docs = append(docs, domain.Document{ID: hashString(source), Source: source, Content: text})
	}
	for _, path := range Files(src.Files) {
		text, err := LoadText(ctx, l.client, path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		l.logger.Debug("loaded source", zap.String("source", path), zap.Int("bytes", len(text)))
		docs = append(docs, domain.Document{ID: hashString(path), Source: path, Content: text})
	}
	return docs, nil
}

// Files expands glob patterns. URLs and patterns without matches are kept
// as given so that reading them reports the problem.
func Files(patterns []string) []string {
	var out []string
	for _, p := range patterns {
		if isURL(p) {
			out = append(out, p)
			continue
		}
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		out = append(out, matches...)
	}
	return out
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
