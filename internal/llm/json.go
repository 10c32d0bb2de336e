package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON 表示模型输出中找不到可解析的 JSON。
var ErrNoJSON = errors.New("no json in model output")

// FirstObject 返回文本中第一个括号配平的 {...} 子串，字符串字面量内的括号不计数。
func FirstObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > 0 {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// StripFences 去掉 markdown 代码块包裹。
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// DecodeObject 按恢复策略解析模型输出：先取第一个配平的 {...}，失败再整体解析。
func DecodeObject(text string, v any) error {
	if obj, ok := FirstObject(text); ok {
		if err := json.Unmarshal([]byte(obj), v); err == nil {
			return nil
		}
	}
	whole := StripFences(text)
	if whole == "" {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(whole), v); err != nil {
		return errors.Join(ErrNoJSON, err)
	}
	return nil
}
