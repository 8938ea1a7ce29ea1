package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ListingRecord 从榜单页面解析出来的一条记录，只在一次采集中存在
type ListingRecord struct {
	Author             string
	Name               string
	FullName           string
	URL                string
	Description        string
	Language           string
	Stars              int
	Forks              int
	CurrentPeriodStars int
	Avatar             string
	LanguageColor      string
	BuiltBy            []Builder
	Period             Period
}

// TrendingItem 格式化后的记录，字段与 Snapshot 对齐
type TrendingItem struct {
	Author             string
	Name               string
	FullName           string
	URL                string
	Description        string
	Language           string
	Stars              int
	Forks              int
	CurrentPeriodStars int
	Avatar             string
	CollectionDate     time.Time
	Period             Period
	ExtraData          ExtraData
}

// ToSnapshot 组装待入库的快照
func (it *TrendingItem) ToSnapshot(analysis AIAnalysis) *Snapshot {
	s := &Snapshot{
		Author:             it.Author,
		Name:               it.Name,
		FullName:           it.FullName,
		URL:                it.URL,
		Description:        it.Description,
		Language:           it.Language,
		Stars:              it.Stars,
		Forks:              it.Forks,
		CurrentPeriodStars: it.CurrentPeriodStars,
		Avatar:             it.Avatar,
		CollectionDate:     DateOf(it.CollectionDate),
		Period:             it.Period,
	}
	s.AIAnalysis = datatypes.NewJSONType(analysis)
	s.ExtraData = datatypes.NewJSONType(it.ExtraData)
	return s
}

// SnapshotFilter 查询条件，零值字段不参与过滤
type SnapshotFilter struct {
	Date     *time.Time
	From     *time.Time
	To       *time.Time
	Language string // 子串匹配，不区分大小写
	Period   Period
	Limit    int
	Offset   int
}

// Generation 一次文本生成的结果
type Generation struct {
	Text  string
	Usage Usage
}

// Usage token 用量
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
