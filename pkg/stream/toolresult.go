package stream

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	// toolMessageRe locates the marker-prefixed JSON object inside a tool
	// result's free-text content. Greedy to the last closing brace so nested
	// objects survive.
	toolMessageRe = regexp.MustCompile(`(?s)ToolMessage:\s*(\{.*\})`)

	// trailingCommaRe matches a comma left dangling before a closing brace or
	// bracket, an artifact of the object being split across SSE chunks.
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// errNoEmbeddedJSON reports tool result content with no recoverable object.
var errNoEmbeddedJSON = errors.New("no embedded JSON object in tool result content")

// recoverToolResult extracts and best-effort repairs the JSON object embedded
// in a tool result frame's content. The object routinely arrives corrupted:
// SSE chunk boundaries split escape sequences and inject stray newlines, and
// re-concatenation leaves trailing commas. The repair pass reverses exactly
// those artifacts before parsing.
//
// Known fragility: stripping every newline also flattens legitimate
// multi-line string values inside the tool data. The repair mirrors the
// upstream chunking behavior it compensates for, and it is isolated here so
// a real incremental parser can replace it.
func recoverToolResult(content string) (result toolResultPayload, err error) {
	candidate := ""

	if m := toolMessageRe.FindStringSubmatch(content); m != nil {
		candidate = m[1]
	} else {
		first := strings.Index(content, "{")
		last := strings.LastIndex(content, "}")
		if first < 0 || last <= first {
			return result, errNoEmbeddedJSON
		}
		candidate = content[first : last+1]
	}

	repaired := repairJSON(candidate)
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return result, err
	}

	return result, nil
}

// repairJSON strips literal and escaped newlines and removes trailing commas.
func repairJSON(s string) string {
	s = strings.NewReplacer(
		"\\n", "",
		"\\r", "",
		"\n", "",
		"\r", "",
	).Replace(s)

	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// toolResultPayload is the wire shape of a recovered tool result. Success is
// a pointer so an explicit false survives the status-derived default.
type toolResultPayload struct {
	Action  string         `json:"action"`
	Status  string         `json:"status"`
	Data    map[string]any `json:"data"`
	Success *bool          `json:"success,omitempty"`
}

// success resolves the explicit success flag, defaulting to status equality.
func (p toolResultPayload) success() bool {
	if p.Success != nil {
		return *p.Success
	}
	return p.Status == "success"
}

// imageURLs pulls the image_urls string array out of the tool data, if any.
func (p toolResultPayload) imageURLs() []string {
	raw, ok := p.Data["image_urls"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}

	urls := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			urls = append(urls, s)
		}
	}

	if len(urls) == 0 {
		return nil
	}
	return urls
}
