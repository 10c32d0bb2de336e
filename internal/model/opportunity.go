package model

import "strings"

// Record 是三类机会记录的公共行为，IdentityKey 为用户结果集内的去重键。
type Record interface {
	IdentityKey() string
	SetIdentityKey(key string)
	Normalize()
}

// Scorable 表示可以携带匹配分数的记录（职位、导师）。
type Scorable interface {
	Record
	Matching() Match
	SetMatch(m Match)
}

const (
	LabelStrong = "STRONG MATCH"
	LabelOK     = "OK MATCH"
	LabelWeak   = "WEAK MATCH"
)

// Match 是相关性评分结果，两个字段都可能为 null（未评分）。
type Match struct {
	Score *float64 `json:"matching_score"`
	Label *string  `json:"matching_label"`
}

// Scored 报告是否有分数。
func (m Match) Scored() bool { return m.Score != nil }

// LabelFor 按分段返回标签：>=80 强，50~79 中，<50 弱。
func LabelFor(score float64) string {
	switch {
	case score >= 80:
		return LabelStrong
	case score >= 50:
		return LabelOK
	default:
		return LabelWeak
	}
}

// SalaryRange 年薪区间，单位美元。
type SalaryRange struct {
	From *float64 `json:"from"`
	To   *float64 `json:"to"`
}

// Empty 报告区间两端都缺失。
func (s *SalaryRange) Empty() bool {
	return s == nil || (s.From == nil && s.To == nil)
}

// JobListing 职位记录。
type JobListing struct {
	Company        *string      `json:"company"`
	Title          *string      `json:"title"`
	Location       *string      `json:"location"`
	Tags           []string     `json:"tags"`
	Salary         *SalaryRange `json:"salary"`
	EmploymentType *string      `json:"employment_type"`
	WorkMode       *string      `json:"work_mode"`
	PostedDate     *string      `json:"posted_date"`
	Applicants     *int         `json:"applicants"`
	Description    *string      `json:"description"`
	URL            string       `json:"url"`
	Match
}

func (j *JobListing) IdentityKey() string       { return j.URL }
func (j *JobListing) SetIdentityKey(key string) { j.URL = key }
func (j *JobListing) Matching() Match           { return j.Match }
func (j *JobListing) SetMatch(m Match)          { j.Match = m }

func (j *JobListing) Normalize() {
	normalizeStrings(&j.Company, &j.Title, &j.Location, &j.EmploymentType, &j.WorkMode, &j.PostedDate, &j.Description)
	j.Tags = normalizeTags(j.Tags)
	if j.Salary.Empty() {
		j.Salary = nil
	}
	j.URL = strings.TrimSpace(j.URL)
}

// MentorProfile 导师记录。
type MentorProfile struct {
	Name       *string  `json:"name" validate:"required,notblank"`
	Title      *string  `json:"title" validate:"required,notblank"`
	Company    *string  `json:"company"`
	Expertise  []string `json:"expertise"`
	Contact    *string  `json:"contact"`
	ProfileURL string   `json:"profile_url" validate:"required,notblank"`
	Summary    *string  `json:"summary"`
	Match
}

func (m *MentorProfile) IdentityKey() string       { return m.ProfileURL }
func (m *MentorProfile) SetIdentityKey(key string) { m.ProfileURL = key }
func (m *MentorProfile) Matching() Match           { return m.Match }
func (m *MentorProfile) SetMatch(match Match)      { m.Match = match }

func (m *MentorProfile) Normalize() {
	normalizeStrings(&m.Name, &m.Title, &m.Company, &m.Contact, &m.Summary)
	m.Expertise = normalizeTags(m.Expertise)
	m.ProfileURL = strings.TrimSpace(m.ProfileURL)
}

// CommunityEvent 社区活动或福利记录，不参与评分。
type CommunityEvent struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
	Location    *string  `json:"location"`
	Date        *string  `json:"date"`
	Time        *string  `json:"time"`
	Contact     *string  `json:"contact"`
	Audience    *string  `json:"audience"`
	Tags        []string `json:"tags"`
	Link        string   `json:"link"`
}

func (e *CommunityEvent) IdentityKey() string       { return e.Link }
func (e *CommunityEvent) SetIdentityKey(key string) { e.Link = key }

func (e *CommunityEvent) Normalize() {
	normalizeStrings(&e.Name, &e.Description, &e.Category, &e.Location, &e.Date, &e.Time, &e.Contact, &e.Audience)
	e.Tags = normalizeTags(e.Tags)
	e.Link = strings.TrimSpace(e.Link)
}

// 模型常用这些字样表示"没有"，统一当作 null。
var nullWords = map[string]struct{}{
	"null": {}, "none": {}, "n/a": {}, "na": {}, "unknown": {}, "not specified": {},
}

func normalizeStrings(fields ...**string) {
	for _, f := range fields {
		if *f == nil {
			continue
		}
		v := strings.TrimSpace(**f)
		if _, ok := nullWords[strings.ToLower(v)]; ok || v == "" {
			*f = nil
			continue
		}
		*f = &v
	}
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Blank 报告可空字符串是否为空。
func Blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// Ptr 返回值的指针，测试与默认值构造用。
func Ptr[T any](v T) *T { return &v }
