package stream

import (
	"encoding/json"
	"regexp"

	"github.com/xenophobed/isastream/pkg/chat"
)

var (
	// markdownImageRe matches ![alt](url) image syntax.
	markdownImageRe = regexp.MustCompile(`!\[([^\]]*)\]\(([^)\s]+)\)`)

	// bareImageURLRe matches raw URLs with a known image extension.
	bareImageURLRe = regexp.MustCompile(`(?i)https?://[^\s<>()"']+\.(?:png|jpe?g|gif|webp)`)
)

// defaultImageTitle names extracted images that carry no alt text.
const defaultImageTitle = "Generated Image"

// resolveContent is the fallback path, used when no token ever crossed the
// scaffold/content boundary. It resolves the full content payload to the
// message text and discovers media items: passed through from the backend's
// media_items array when present, extracted from the text otherwise.
func resolveContent(payload string) (string, []chat.MediaItem) {
	text := payload
	var media []chat.MediaItem

	var parsed map[string]any
	if err := json.Unmarshal([]byte(payload), &parsed); err == nil {
		if fc, ok := parsed["formatted_content"]; ok {
			switch v := fc.(type) {
			case string:
				text = v
			default:
				// Nested formatted content can itself be an object;
				// stringify it rather than dropping it.
				if b, err := json.Marshal(v); err == nil {
					text = string(b)
				}
			}
		}

		media = mediaItemsFromJSON(parsed)
	}

	if media == nil {
		media = extractMedia(text)
	}

	return text, media
}

// mediaItemsFromJSON reads an explicit media_items array from the parsed
// content payload. Returns nil when the field is absent or empty.
func mediaItemsFromJSON(parsed map[string]any) []chat.MediaItem {
	raw, ok := parsed["media_items"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}

	items := make([]chat.MediaItem, 0, len(raw))
	for _, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}

		url, _ := m["url"].(string)
		if url == "" {
			continue
		}

		item := chat.MediaItem{Type: chat.MediaTypeImage, URL: url}
		if t, ok := m["type"].(string); ok && t != "" {
			item.Type = t
		}
		if title, ok := m["title"].(string); ok {
			item.Title = title
		}

		items = append(items, item)
	}

	if len(items) == 0 {
		return nil
	}
	return items
}

// extractMedia discovers image references in resolved text via markdown
// image syntax and bare image URLs, de-duplicated in discovery order.
func extractMedia(text string) []chat.MediaItem {
	var items []chat.MediaItem
	seen := make(map[string]bool)

	for _, m := range markdownImageRe.FindAllStringSubmatch(text, -1) {
		alt, url := m[1], m[2]
		if seen[url] {
			continue
		}
		seen[url] = true

		title := alt
		if title == "" {
			title = defaultImageTitle
		}

		items = append(items, chat.MediaItem{
			Type:  chat.MediaTypeImage,
			URL:   url,
			Title: title,
		})
	}

	for _, url := range bareImageURLRe.FindAllString(text, -1) {
		if seen[url] {
			continue
		}
		seen[url] = true

		items = append(items, chat.MediaItem{
			Type:  chat.MediaTypeImage,
			URL:   url,
			Title: defaultImageTitle,
		})
	}

	return items
}
