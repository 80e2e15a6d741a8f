package catalog

import (
	"regexp"
	"strings"
)

var (
	sceneClassPattern  = regexp.MustCompile(`class\s+([A-Za-z_$][\w$]*)\s+extends\s+(?:[A-Za-z_$][\w$]*\.)*Scene\b`)
	sceneConfigPattern = regexp.MustCompile(`(?m)^(?:const|let|var)\s+config\s*=\s*\{`)
)

// SceneInfo metadata derived from the content of a leaf
type SceneInfo struct {
	HasScene      bool    `json:"hasScene"`
	ClassName     *string `json:"className"`
	SceneName     *string `json:"sceneName"`
	ConfigSnippet *string `json:"configSnippet"`
}

// UnmarshalJSON accepts the legacy "config" key for the config snippet
func (s *SceneInfo) UnmarshalJSON(data []byte) error {
	var aux struct {
		HasScene      bool    `json:"hasScene"`
		ClassName     *string `json:"className"`
		SceneName     *string `json:"sceneName"`
		ConfigSnippet *string `json:"configSnippet"`
		Config        *string `json:"config"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = SceneInfo{
		HasScene:      aux.HasScene,
		ClassName:     aux.ClassName,
		SceneName:     aux.SceneName,
		ConfigSnippet: aux.ConfigSnippet,
	}
	if s.ConfigSnippet == nil {
		s.ConfigSnippet = aux.Config
	}
	return nil
}

// DeriveSceneInfo scans example source for a scene class, a top level config
// object and a title comment. Every signal is optional, a miss leaves its
// field nil.
func DeriveSceneInfo(content string) *SceneInfo {
	info := &SceneInfo{}
	if m := sceneClassPattern.FindStringSubmatch(content); m != nil {
		info.HasScene = true
		info.ClassName = stringPtr(m[1])
	}
	if loc := sceneConfigPattern.FindStringIndex(content); loc != nil {
		if end := matchBrace(content, loc[1]-1); end > 0 {
			info.ConfigSnippet = stringPtr(content[loc[0] : end+1])
		}
	}
	if title, ok := blockCommentTitle(content); ok {
		info.SceneName = stringPtr(title)
	}
	return info
}

// matchBrace returns the index of the brace closing the one at open, or -1.
// Braces inside string literals and comments are skipped.
func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '\'', '`':
			i = skipString(s, i, c)
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				if nl := strings.IndexByte(s[i:], '\n'); nl >= 0 {
					i += nl
				} else {
					return -1
				}
			} else if i+1 < len(s) && s[i+1] == '*' {
				if e := strings.Index(s[i+2:], "*/"); e >= 0 {
					i += e + 3
				} else {
					return -1
				}
			}
		}
	}
	return -1
}

func skipString(s string, start int, quote byte) int {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return len(s)
}

// blockCommentTitle first non empty line of the first block comment
func blockCommentTitle(content string) (string, bool) {
	start := strings.Index(content, "/*")
	if start < 0 {
		return "", false
	}
	body := content[start+2:]
	if end := strings.Index(body, "*/"); end >= 0 {
		body = body[:end]
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "*"))
		if line != "" {
			return line, true
		}
	}
	return "", false
}

func stringPtr(v string) *string {
	return &v
}
