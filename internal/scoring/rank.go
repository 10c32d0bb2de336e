package scoring

import (
	"sort"

	"next-mission/internal/model"
)

// Rank 稳定排序：有分数的在前并按分数降序，无分数（或不可评分）的保持原相对顺序排在最后。
func Rank[T model.Record](records []T) {
	sort.SliceStable(records, func(i, j int) bool {
		si, iok := scoreOf(records[i])
		sj, jok := scoreOf(records[j])
		if iok != jok {
			return iok
		}
		return iok && si > sj
	})
}

func scoreOf(rec model.Record) (float64, bool) {
	s, ok := rec.(model.Scorable)
	if !ok {
		return 0, false
	}
	m := s.Matching()
	if m.Score == nil {
		return 0, false
	}
	return *m.Score, true
}
