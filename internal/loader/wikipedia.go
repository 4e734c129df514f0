package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrNoArticles is returned when none of the requested topics exist.
var ErrNoArticles = errors.New("no wikipedia articles found")

// Wikipedia fetches plain-text article extracts from the MediaWiki API and
// keeps the combined text in a cache file.
type Wikipedia struct {
	endpoint  string
	userAgent string
	cachePath string
	client    *http.Client
	logger    *zap.Logger
}

func NewWikipedia(cfg Config, client *http.Client, logger *zap.Logger) *Wikipedia {
	endpoint := cfg.WikipediaEndpoint
	if endpoint == "" {
		lang := cfg.Language
		if lang == "" {
			lang = "en"
		}
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
	}
	return &Wikipedia{
		endpoint:  endpoint,
		userAgent: cfg.UserAgent,
		cachePath: cfg.WikipediaCache,
		client:    client,
		logger:    logger,
	}
}

// Load returns the cached text when the cache was written for the same
// topic list. Otherwise it fetches every topic, joins the articles with blank
// lines and rewrites the cache.
func (w *Wikipedia) Load(ctx context.Context, topics []string) (string, error) {
	key := topicsKey(topics)
	if w.cachePath != "" {
		text, ok, err := w.readCache(key)
		if err != nil {
			return "", err
		}
		if ok {
			w.logger.Info("loading wikipedia content from cache", zap.String("path", w.cachePath))
			return text, nil
		}
	}

	var articles []string
	for _, topic := range topics {
		text, ok, err := w.fetch(ctx, topic)
		if err != nil {
			return "", fmt.Errorf("fetch %q: %w", topic, err)
		}
		if !ok {
			w.logger.Warn("wikipedia topic does not exist", zap.String("topic", topic))
			continue
		}
		w.logger.Info("fetched wikipedia topic", zap.String("topic", topic), zap.Int("chars", len(text)))
		articles = append(articles, text)
	}
	if len(articles) == 0 {
		return "", ErrNoArticles
	}
	result := strings.Join(articles, "\n\n")

	if w.cachePath != "" {
		// the key goes last so a half written cache never looks valid
		if err := os.Remove(w.cachePath + topicsSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("invalidate wikipedia cache: %w", err)
		}
		if err := writeFileAtomic(w.cachePath, []byte(result)); err != nil {
			return "", fmt.Errorf("write wikipedia cache: %w", err)
		}
		if err := writeFileAtomic(w.cachePath+topicsSuffix, []byte(key)); err != nil {
			return "", fmt.Errorf("write wikipedia cache key: %w", err)
		}
	}
	return result, nil
}

const topicsSuffix = ".topics"

func topicsKey(topics []string) string {
	return strings.Join(topics, "\n")
}

// readCache reports a hit only when the sidecar key matches. A cache without
// a key file predates keying and is treated as stale.
func (w *Wikipedia) readCache(key string) (string, bool, error) {
	stored, err := os.ReadFile(w.cachePath + topicsSuffix)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if string(stored) != key {
		w.logger.Info("wikipedia cache was built for other topics, refetching", zap.String("path", w.cachePath))
		return "", false, nil
	}
	data, err := os.ReadFile(w.cachePath)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

func (w *Wikipedia) fetch(ctx context.Context, topic string) (string, bool, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("explaintext", "1")
	q.Set("redirects", "1")
	q.Set("format", "json")
	q.Set("formatversion", "2")
	q.Set("titles", topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", false, err
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("wikipedia api: %s", resp.Status)
	}

	var out struct {
		Query struct {
			Pages []struct {
				Title   string `json:"title"`
				Missing bool   `json:"missing"`
				Invalid bool   `json:"invalid"`
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode wikipedia response: %w", err)
	}
	for _, p := range out.Query.Pages {
		if p.Missing || p.Invalid || strings.TrimSpace(p.Extract) == "" {
			continue
		}
		return p.Extract, true, nil
	}
	return "", false, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
