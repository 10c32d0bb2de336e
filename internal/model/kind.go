package model

import "fmt"

// Kind 表示机会类型：职位、导师、社区活动/福利。
type Kind string

const (
	KindJobs    Kind = "jobs"
	KindMentors Kind = "mentors"
	KindEvents  Kind = "events"
)

// Kinds 返回全部机会类型，顺序固定。
func Kinds() []Kind {
	return []Kind{KindJobs, KindMentors, KindEvents}
}

// ParseKind 解析路由或命令行中的类型名。
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindJobs, KindMentors, KindEvents:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown opportunity kind %q", s)
	}
}

// CacheTable 返回该类型缓存记录所在的表名。
func (k Kind) CacheTable() string {
	switch k {
	case KindJobs:
		return "job_cache"
	case KindMentors:
		return "mentor_cache"
	default:
		return "event_cache"
	}
}
