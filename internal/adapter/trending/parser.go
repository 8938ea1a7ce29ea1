package trending

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github-trending-digest/internal/common"
	"github-trending-digest/internal/domain"

	"github.com/PuerkitoBio/goquery"
)

const githubHost = "https://github.com"

var gainPattern = regexp.MustCompile(`(?i)\d.*\b(today|week|month)\b`)

// Parser 实现了 port.ListingParser 接口。
// 页面结构随时可能变化，所有选择器都带兜底。
type Parser struct {
	logger *slog.Logger
}

// NewParser 创建解析器
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse 解析榜单页面，保持页面顺序；单个条目出错只跳过该条目
func (p *Parser) Parse(markup, languageHint string, period domain.Period) []domain.ListingRecord {
	if strings.TrimSpace(markup) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		p.logger.Warn("parse trending markup failed", "error", err, "period", period)
		return nil
	}

	blocks := doc.Find("article.Box-row")
	if blocks.Length() == 0 {
		blocks = doc.Find("article")
	}

	records := make([]domain.ListingRecord, 0, blocks.Length())
	blocks.Each(func(i int, s *goquery.Selection) {
		rec, err := p.parseBlock(s, languageHint, period)
		if err != nil {
			p.logger.Warn("skip trending block", "index", i, "period", period, "error", err)
			return
		}
		if rec == nil {
			p.logger.Debug("drop trending block without name or url", "index", i, "period", period)
			return
		}
		records = append(records, *rec)
	})

	return records
}

func (p *Parser) parseBlock(s *goquery.Selection, languageHint string, period domain.Period) (rec *domain.ListingRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = common.NewError(common.ErrCodeParse, fmt.Sprintf("panic: %v", r))
		}
	}()

	author, name, repoURL := extractIdentity(s)
	fullName := ""
	if author != "" && name != "" {
		fullName = author + "/" + name
	}
	if fullName == "" && repoURL == "" {
		return nil, nil
	}

	language := strings.TrimSpace(s.Find("[itemprop=programmingLanguage]").First().Text())
	if language == "" {
		language = capitalize(strings.TrimSpace(languageHint))
	}

	avatar, _ := s.Find("img.avatar").First().Attr("src")

	return &domain.ListingRecord{
		Author:             author,
		Name:               name,
		FullName:           fullName,
		URL:                repoURL,
		Description:        extractDescription(s),
		Language:           language,
		Stars:              countFromLink(s, "/stargazers"),
		Forks:              countFromLink(s, "/forks", "/network/members"),
		CurrentPeriodStars: extractPeriodGain(s),
		Avatar:             avatar,
		LanguageColor:      extractLanguageColor(s),
		BuiltBy:            extractBuilders(s),
		Period:             period,
	}, nil
}

// extractIdentity 先看标题链接，再找第一个至少两段路径的链接
func extractIdentity(s *goquery.Selection) (author, name, repoURL string) {
	heading := s.Find("h2 a, h1 a").First()
	if heading.Length() > 0 {
		if href, ok := heading.Attr("href"); ok {
			if a, n, ok := splitRepoPath(href); ok {
				return a, n, absoluteURL(href, a, n)
			}
		}
		text := strings.Join(strings.Fields(heading.Text()), "")
		if a, n, ok := splitRepoPath(text); ok {
			return a, n, githubHost + "/" + a + "/" + n
		}
	}

	s.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if a, n, ok := splitRepoPath(href); ok {
			author, name, repoURL = a, n, absoluteURL(href, a, n)
			return false
		}
		return true
	})
	return author, name, repoURL
}

// splitRepoPath 取路径的前两段作为 author/name
func splitRepoPath(raw string) (string, string, bool) {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	segs := make([]string, 0, 2)
	for _, seg := range strings.Split(path, "/") {
		if seg = strings.TrimSpace(seg); seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) < 2 {
		return "", "", false
	}
	return segs[0], segs[1], true
}

func absoluteURL(href, author, name string) string {
	if u, err := url.Parse(href); err == nil && u.IsAbs() {
		return u.Scheme + "://" + u.Host + "/" + author + "/" + name
	}
	return githubHost + "/" + author + "/" + name
}

func extractDescription(s *goquery.Selection) string {
	desc := s.Find("p.col-9").First()
	if desc.Length() == 0 {
		desc = s.Find("p").First()
	}
	return strings.Join(strings.Fields(desc.Text()), " ")
}

func extractLanguageColor(s *goquery.Selection) string {
	style, ok := s.Find(".repo-language-color").First().Attr("style")
	if !ok {
		return ""
	}
	for _, decl := range strings.Split(style, ";") {
		k, v, found := strings.Cut(decl, ":")
		if found && strings.EqualFold(strings.TrimSpace(k), "background-color") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func countFromLink(s *goquery.Selection, suffixes ...string) int {
	count := 0
	s.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		href = strings.TrimRight(href, "/")
		for _, suffix := range suffixes {
			if strings.HasSuffix(href, suffix) {
				count = common.ParseCount(link.Text())
				return false
			}
		}
		return true
	})
	return count
}

// extractPeriodGain 右对齐的 "1,234 stars today" 之类
func extractPeriodGain(s *goquery.Selection) int {
	gain := 0
	s.Find("span.float-sm-right, .float-right").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		text := strings.Join(strings.Fields(span.Text()), " ")
		if gainPattern.MatchString(text) {
			gain = common.LeadingCount(text)
			return false
		}
		return true
	})
	return gain
}

func extractBuilders(s *goquery.Selection) []domain.Builder {
	builders := []domain.Builder{}
	s.Find("a[data-hovercard-type=user]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		username := strings.Trim(href, "/")
		if u, err := url.Parse(href); err == nil {
			username = strings.Trim(u.Path, "/")
		}
		img := link.Find("img").First()
		if username == "" {
			alt, _ := img.Attr("alt")
			username = strings.TrimPrefix(alt, "@")
		}
		if username == "" {
			return
		}
		avatar, _ := img.Attr("src")
		builders = append(builders, domain.Builder{
			Username: username,
			Href:     githubHost + "/" + username,
			Avatar:   avatar,
		})
	})
	return builders
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
