package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// LoadText reads a local file, or fetches an http(s) URL. HTML pages are
// reduced to their readable text, one block per paragraph.
func LoadText(ctx context.Context, client *http.Client, source string) (string, error) {
	if !isURL(source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("GET %s: %s", source, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "text/html"):
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("parse HTML: %w", err)
		}
		return htmlText(doc), nil
	case contentType == "" || strings.HasPrefix(contentType, "text/"):
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("read response: %w", err)
		}
		return string(body), nil
	default:
		return "", fmt.Errorf("unsupported content type: %s", contentType)
	}
}

// htmlText extracts headings, paragraphs and list items separated by blank
// lines, so the paragraph chunker sees the page structure.
func htmlText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, aside").Remove()

	root := doc.Find("main, article").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var blocks []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		return strings.Join(strings.Fields(root.Text()), " ")
	}
	return strings.Join(blocks, "\n\n")
}
