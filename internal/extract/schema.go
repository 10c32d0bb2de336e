package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"next-mission/internal/model"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaError 表示提取 schema 无法加载，属于请求级致命错误。
type SchemaError struct {
	Path  string
	Cause error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Path, e.Cause)
}

func (e *SchemaError) Unwrap() error { return e.Cause }

// Field 是 schema 中的一个顶层字段，用于生成提示词。
type Field struct {
	Name        string
	Type        string
	Description string
}

// Schema 是某个机会类型的提取 schema。
type Schema struct {
	Kind     model.Kind
	Title    string
	Fields   []Field
	compiled *gojsonschema.Schema
}

// SchemaPath 返回类型对应的 schema 文件路径。
func SchemaPath(dir string, kind model.Kind) string {
	return filepath.Join(dir, string(kind)+".schema.json")
}

// LoadSchema 读取并编译 <dir>/<kind>.schema.json，字段顺序与文件一致。
func LoadSchema(dir string, kind model.Kind) (*Schema, error) {
	path := SchemaPath(dir, kind)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SchemaError{Path: path, Cause: err}
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &SchemaError{Path: path, Cause: fmt.Errorf("compile: %w", err)}
	}

	var doc struct {
		Title      string          `json:"title"`
		Properties json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &SchemaError{Path: path, Cause: err}
	}
	names, err := objectKeys(doc.Properties)
	if err != nil {
		return nil, &SchemaError{Path: path, Cause: err}
	}
	if len(names) == 0 {
		return nil, &SchemaError{Path: path, Cause: fmt.Errorf("schema has no properties")}
	}
	var props map[string]json.RawMessage
	if err := json.Unmarshal(doc.Properties, &props); err != nil {
		return nil, &SchemaError{Path: path, Cause: err}
	}

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		var prop struct {
			Type        any    `json:"type"`
			Description string `json:"description"`
		}
		if err := json.Unmarshal(props[name], &prop); err != nil {
			return nil, &SchemaError{Path: path, Cause: fmt.Errorf("property %s: %w", name, err)}
		}
		fields = append(fields, Field{Name: name, Type: typeString(prop.Type), Description: prop.Description})
	}

	return &Schema{Kind: kind, Title: doc.Title, Fields: fields, compiled: compiled}, nil
}

// Has 报告 schema 是否定义了该字段。
func (s *Schema) Has(name string) bool {
	for _, f := range s.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Violations 返回文档中类型不符的顶层字段名。
func (s *Schema) Violations(doc map[string]any) []string {
	if s == nil || s.compiled == nil {
		return nil
	}
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil || result.Valid() {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		top := strings.SplitN(re.Field(), ".", 2)[0]
		if top == "" || top == "(root)" {
			continue
		}
		if _, ok := seen[top]; ok {
			continue
		}
		seen[top] = struct{}{}
		out = append(out, top)
	}
	return out
}

// objectKeys 按出现顺序返回 JSON 对象的键。
func objectKeys(raw json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("properties must be an object")
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read property name: %w", err)
		}
		key, _ := tok.(string)
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, fmt.Errorf("read property %s: %w", key, err)
		}
	}
	return keys, nil
}

func typeString(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " or ")
	default:
		return "any"
	}
}
