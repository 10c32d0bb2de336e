package model

import (
	"errors"
	"strings"
)

// ErrProfileNotFound 表示档案存储中没有该用户的档案。
var ErrProfileNotFound = errors.New("profile not found")

// Profile 是退伍军人档案，由外部档案存储持有，流水线只读使用。
type Profile struct {
	UserID             string           `json:"user_id,omitempty"`
	FullName           string           `json:"full_name,omitempty"`
	BranchOfService    string           `json:"branch_of_service,omitempty"`
	PayGrade           string           `json:"pay_grade,omitempty"`
	ServiceStartDate   string           `json:"service_start_date,omitempty"`
	ServiceEndDate     string           `json:"service_end_date,omitempty"`
	CharacterOfService string           `json:"character_of_service,omitempty"`
	Location           string           `json:"location,omitempty"`
	History            []ServiceEntry   `json:"mos_history"`
	Awards             []Award          `json:"awards,omitempty"`
	TrainingCourses    []TrainingCourse `json:"training_courses,omitempty"`
	Summary            string           `json:"profile_summary,omitempty"`
}

// ServiceEntry 是一段服役经历，Code 为军事职业代码（如 11B）。
type ServiceEntry struct {
	Code        string `json:"code"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	Source      string `json:"source,omitempty"`
}

type Award struct {
	Name        string `json:"name"`
	DateAwarded string `json:"date_awarded,omitempty"`
	Description string `json:"description,omitempty"`
}

type TrainingCourse struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	CompletionDate string `json:"completion_date,omitempty"`
}

// Clone 深拷贝档案，富化时不影响存储中的原件。
func (p Profile) Clone() Profile {
	out := p
	out.History = append([]ServiceEntry(nil), p.History...)
	out.Awards = append([]Award(nil), p.Awards...)
	out.TrainingCourses = append([]TrainingCourse(nil), p.TrainingCourses...)
	return out
}

// HistoryTitles 按顺序返回非空的服役职位名称。
func (p Profile) HistoryTitles() []string {
	titles := make([]string, 0, len(p.History))
	for _, entry := range p.History {
		if t := strings.TrimSpace(entry.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return titles
}

// ExperienceLevel 根据薪级粗略推断资历：E-1~E-4/O-1~O-2 入门，E-5~E-7/W/O-3~O-4 中级，其余高级。
func (p Profile) ExperienceLevel() string {
	grade := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(p.PayGrade), "-", ""))
	if len(grade) < 2 {
		return ""
	}
	rank := 0
	for _, r := range grade[1:] {
		if r < '0' || r > '9' {
			return ""
		}
		rank = rank*10 + int(r-'0')
	}
	switch grade[0] {
	case 'E':
		switch {
		case rank <= 4:
			return "entry"
		case rank <= 7:
			return "mid"
		default:
			return "senior"
		}
	case 'W':
		return "mid"
	case 'O':
		switch {
		case rank <= 2:
			return "entry"
		case rank <= 4:
			return "mid"
		default:
			return "senior"
		}
	}
	return ""
}
