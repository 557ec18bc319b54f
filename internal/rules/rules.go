// 包 rules 负责加载订阅镜像页面的提取规则（rules.yaml），
// 以预设名组织 CSS 选择器，用于从订阅条目的 HTML 正文中提取文本与图片。
package rules

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单类订阅源的选择器集合。
type Preset struct {
	FeedItem *FeedItem `yaml:"feed_item"`
}

// FeedItem 选择器语法：
// - 文本："selector" 或 "."（整个正文）
// - 属性："selector@attr" / "@attr"
// - 回退：使用 "||" 连接多个候选，按先后尝试
type FeedItem struct {
	Content string `yaml:"content"`
	Image   string `yaml:"image"`
}

// Load 从 YAML 文件加载预设。
func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules %s: %w", path, err)
	}
	return &r, nil
}

// GetPreset 按名称获取预设（不区分大小写）；找不到时回退到 "default"，
// 再回退到按名称排序后的第一个预设，保证多次运行结果一致。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}, false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	keys := slices.Sorted(maps.Keys(r.Presets))
	for _, want := range []string{name, "default"} {
		for _, k := range keys {
			if strings.EqualFold(k, want) {
				return r.Presets[k], true
			}
		}
	}
	return r.Presets[keys[0]], true
}
