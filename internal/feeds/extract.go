package feeds

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// valueOf 对 scope 求值形如 ".body||." 的表达式，返回第一个非空结果：
//   - "."          scope 自身文本
//   - "sel"        第一个匹配的文本
//   - "sel@attr"   第一个匹配的属性
//   - "@attr"      scope 自身属性
func valueOf(scope *goquery.Selection, expr string) string {
	for _, part := range strings.Split(expr, "||") {
		if v := valueSingle(scope, strings.TrimSpace(part)); v != "" {
			return v
		}
	}
	return ""
}

func valueSingle(scope *goquery.Selection, expr string) string {
	switch {
	case expr == "":
		return ""
	case expr == ".":
		return strings.TrimSpace(scope.Text())
	}
	sel, attr, hasAttr := strings.Cut(expr, "@")
	sel, attr = strings.TrimSpace(sel), strings.TrimSpace(attr)
	if hasAttr {
		target := scope
		if sel != "" {
			target = scope.Find(sel).First()
		}
		if target.Length() == 0 {
			return ""
		}
		v, _ := target.Attr(attr)
		return strings.TrimSpace(v)
	}
	el := scope.Find(sel).First()
	if el.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

// valuesOf 为多匹配版本的 valueOf：第一个产生非空值的候选胜出。
func valuesOf(scope *goquery.Selection, expr string) []string {
	for _, part := range strings.Split(expr, "||") {
		part = strings.TrimSpace(part)
		if part == "" || part == "." {
			continue
		}
		sel, attr, hasAttr := strings.Cut(part, "@")
		sel, attr = strings.TrimSpace(sel), strings.TrimSpace(attr)
		var out []string
		scope.Find(sel).Each(func(_ int, s *goquery.Selection) {
			var v string
			if hasAttr {
				v, _ = s.Attr(attr)
			} else {
				v = s.Text()
			}
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// plainText 合并标记残留的连续空白。
func plainText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// absURL 将相对链接转换为绝对 URL，无法解析时原样返回。
func absURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(ru).String()
}
