package model

// SearchResult 是搜索引擎返回的一条候选链接，不单独持久化。
type SearchResult struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	SourceDomain string `json:"source_domain"`
}
