package discovery

import "next-mission/internal/model"

// KindConfig 是单个机会类型的搜索设置。
type KindConfig struct {
	Sources    []string `yaml:"sources" json:"sources"`
	Site       string   `yaml:"site" json:"site"`
	Suffix     string   `yaml:"suffix" json:"suffix"`
	MaxResults int      `yaml:"max_results" json:"max_results"`
}

// Spec 描述流水线的一个类型化实例。
type Spec[T model.Record] struct {
	Kind       model.Kind
	New        func() T
	Site       string
	Suffix     string
	MaxResults int
	// UseLocation 为 true 时把档案所在地（默认 United States）加入查询。
	UseLocation bool
	// Scored 为 false 的类型不调用评分。
	Scored bool
}

// DefaultLocation 在档案没有所在地时用于职位查询。
const DefaultLocation = "United States"

// DefaultSources 返回各类型默认启用的搜索源。
func DefaultSources(kind model.Kind) []string {
	switch kind {
	case model.KindJobs:
		return []string{"serpapi", "usajobs"}
	default:
		return []string{"serpapi", "duckduckgo"}
	}
}

// JobSpec 职位：限定职业社交网站职位页，按所在地过滤，参与评分。
func JobSpec(cfg KindConfig) Spec[*model.JobListing] {
	return Spec[*model.JobListing]{
		Kind:        model.KindJobs,
		New:         func() *model.JobListing { return &model.JobListing{} },
		Site:        pick(cfg.Site, "linkedin.com/jobs"),
		Suffix:      pick(cfg.Suffix, "veteran"),
		MaxResults:  cfg.MaxResults,
		UseLocation: true,
		Scored:      true,
	}
}

// MentorSpec 导师：限定职业社交网站个人主页，参与评分。
func MentorSpec(cfg KindConfig) Spec[*model.MentorProfile] {
	return Spec[*model.MentorProfile]{
		Kind:       model.KindMentors,
		New:        func() *model.MentorProfile { return &model.MentorProfile{} },
		Site:       pick(cfg.Site, "linkedin.com/in"),
		Suffix:     pick(cfg.Suffix, "veteran mentor"),
		MaxResults: cfg.MaxResults,
		Scored:     true,
	}
}

// EventSpec 社区活动/福利：不限站点，不评分。
func EventSpec(cfg KindConfig) Spec[*model.CommunityEvent] {
	return Spec[*model.CommunityEvent]{
		Kind:       model.KindEvents,
		New:        func() *model.CommunityEvent { return &model.CommunityEvent{} },
		Site:       cfg.Site,
		Suffix:     pick(cfg.Suffix, "veteran community events benefits"),
		MaxResults: cfg.MaxResults,
	}
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
