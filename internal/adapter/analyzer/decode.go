package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github-trending-digest/internal/domain"
)

var (
	errEmptyReply   = errors.New("empty reply")
	errNoJSON       = errors.New("reply contains no JSON object")
	errUnrecognized = errors.New("reply has none of the expected keys")
)

// stripFence 去掉 ```json ... ``` 包裹
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimLeft(strings.TrimPrefix(s, "```"), "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decodeReply 解析模型回复。直接解析失败时再尝试最外层的 {...}。
func decodeReply(reply string) (domain.AIAnalysis, error) {
	cleaned := stripFence(reply)
	if cleaned == "" {
		return domain.AIAnalysis{}, errEmptyReply
	}

	a, err := decodeObject(cleaned)
	if err == nil || errors.Is(err, errUnrecognized) {
		return a, err
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return domain.AIAnalysis{}, errNoJSON
	}
	return decodeObject(cleaned[start : end+1])
}

func decodeObject(s string) (domain.AIAnalysis, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &keys); err != nil {
		return domain.AIAnalysis{}, fmt.Errorf("malformed JSON: %w", err)
	}
	recognized := false
	for _, k := range analysisKeys {
		if _, ok := keys[k]; ok {
			recognized = true
			break
		}
	}
	if !recognized {
		return domain.AIAnalysis{}, errUnrecognized
	}

	var raw rawAnalysis
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return domain.AIAnalysis{}, fmt.Errorf("malformed JSON: %w", err)
	}
	return domain.AIAnalysis{
		Title:               string(raw.Title),
		Summary:             string(raw.Summary),
		CoreFeatures:        string(raw.CoreFeatures),
		TechStack:           []string(raw.TechStack),
		UseCases:            string(raw.UseCases),
		Highlights:          []string(raw.Highlights),
		RecommendationScore: int(raw.RecommendationScore),
		Tags:                []string(raw.Tags),
	}, nil
}

// rawAnalysis 对模型输出做宽松解码
type rawAnalysis struct {
	Title               flexString `json:"title"`
	Summary             flexString `json:"summary"`
	CoreFeatures        flexString `json:"core_features"`
	TechStack           flexList   `json:"tech_stack"`
	UseCases            flexString `json:"use_cases"`
	Highlights          flexList   `json:"highlights"`
	RecommendationScore flexInt    `json:"recommendation_score"`
	Tags                flexList   `json:"tags"`
}

// flexString 接受字符串、数字或字符串数组（用 "; " 拼接）
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var list flexList
	if err := json.Unmarshal(b, &list); err == nil {
		*f = flexString(strings.Join(list, "; "))
		return nil
	}
	*f = flexString(strings.Trim(string(b), `"`))
	return nil
}

// flexList 接受数组或单个字符串
type flexList []string

func (f *flexList) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("expected list or string, got %s", b)
		}
		if s = strings.TrimSpace(s); s != "" {
			*f = flexList{s}
		} else {
			*f = flexList{}
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			s = string(item)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*f = out
	return nil
}

// flexInt 接受整数、小数或数字字符串，结果限制在 0 到 100 之间
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	text := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if text == "" {
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("recommendation_score %s is not a number", b)
	}
	*f = flexInt(math.Round(max(0, min(100, v))))
	return nil
}

func isNull(b []byte) bool {
	return bytes.Equal(bytes.TrimSpace(b), []byte("null"))
}
