package codes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"next-mission/internal/model"

	"gopkg.in/yaml.v3"
)

// Entry 是一条军事职业代码说明。
type Entry struct {
	Code        string `yaml:"code" json:"code"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Table 是启动时构建的只读代码表，按军种再按代码索引。
type Table struct {
	byBranch map[string]map[string]Entry
}

// New 用给定条目构建代码表，branch 为空时归入 "any"。
func New(entries map[string][]Entry) *Table {
	t := &Table{byBranch: make(map[string]map[string]Entry)}
	for branch, list := range entries {
		key := normalizeBranch(branch)
		if t.byBranch[key] == nil {
			t.byBranch[key] = make(map[string]Entry)
		}
		for _, e := range list {
			code := normalizeCode(e.Code)
			if code == "" {
				continue
			}
			e.Code = code
			t.byBranch[key][code] = e
		}
	}
	return t
}

// Load 读取目录下所有 <branch>_mos.{yaml,yml,json} 文件；JSON 作为 YAML 子集一并解析。
func Load(dir string) (*Table, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*_mos.*"))
	if err != nil {
		return nil, fmt.Errorf("glob code tables: %w", err)
	}
	sort.Strings(matches)

	entries := make(map[string][]Entry)
	for _, path := range matches {
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read code table %s: %w", path, err)
		}
		var list []Entry
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse code table %s: %w", path, err)
		}
		branch := strings.TrimSuffix(filepath.Base(path), "_mos"+filepath.Ext(path))
		entries[branch] = append(entries[branch], list...)
	}
	return New(entries), nil
}

// Len 返回条目总数。
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	n := 0
	for _, codes := range t.byBranch {
		n += len(codes)
	}
	return n
}

// Lookup 查找代码；军种未知或未命中时按军种名排序逐个回退查找。
func (t *Table) Lookup(branch, code string) (Entry, bool) {
	if t == nil {
		return Entry{}, false
	}
	code = normalizeCode(code)
	if code == "" {
		return Entry{}, false
	}
	if e, ok := t.byBranch[normalizeBranch(branch)][code]; ok {
		return e, true
	}
	branches := make([]string, 0, len(t.byBranch))
	for b := range t.byBranch {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	for _, b := range branches {
		if e, ok := t.byBranch[b][code]; ok {
			return e, true
		}
	}
	return Entry{}, false
}

// Enrich 返回富化后的档案副本：用代码表补全服役经历的职位名称与描述。
// 已有的非空字段保持不变。
func (t *Table) Enrich(p model.Profile) model.Profile {
	out := p.Clone()
	for i, entry := range out.History {
		e, ok := t.Lookup(p.BranchOfService, entry.Code)
		if !ok {
			continue
		}
		if strings.TrimSpace(entry.Title) == "" {
			out.History[i].Title = e.Title
		}
		if strings.TrimSpace(entry.Description) == "" {
			out.History[i].Description = e.Description
		}
	}
	return out
}

func normalizeBranch(b string) string {
	b = strings.ToLower(strings.TrimSpace(b))
	b = strings.TrimPrefix(b, "us ")
	b = strings.TrimPrefix(b, "u.s. ")
	if b == "" {
		return "any"
	}
	return b
}

func normalizeCode(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
