// Package fieldextract pulls the eight labelled fields out of the free-text
// insect description returned by the vision model.
//
// The model is asked to answer with one "label: content" line per field. The
// extractor is tolerant: content runs until the next known label, brackets
// around a value are unwrapped, and absent labels resolve to empty fields. It
// never fails and performs no semantic validation.
package fieldextract

import (
	"regexp"
	"sort"
	"strings"
)

const (
	KeyName       = "곤충_이름"
	KeyNameEN     = "곤충_이름_영문"
	KeyType       = "곤충_종류"
	KeyAppearance = "특별한_모습"
	KeyHabitat    = "서식지"
	KeyFood       = "먹이"
	KeyFunFact    = "재미있는_점"
	KeyFriendship = "친구_되는_법"
)

// Field is one extracted value. Present reports whether the label appeared at
// all, which distinguishes an absent label from a label with empty content.
type Field struct {
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

// Label describes one line of the answer template.
type Label struct {
	Key    string `json:"key"`
	Header string `json:"header"`
}

type labelPattern struct {
	Label
	marker          *regexp.Regexp
	header          *regexp.Regexp
	stopAtBlankLine bool
}

var (
	patterns = []labelPattern{
		newPattern(KeyName, "🐛 곤충 이름", "🐛", `곤충\s*이름`, false),
		newPattern(KeyNameEN, "🐛 곤충 이름(영문)", "🐛", `곤충\s*이름\s*\(\s*영문\s*\)`, false),
		newPattern(KeyType, "📚 곤충 종류", "📚", `곤충\s*종류`, false),
		newPattern(KeyAppearance, "✨ 특별한 모습", "✨", `특별한\s*모습`, false),
		newPattern(KeyHabitat, "🏡 어디에 살까", "🏡", `어디에\s*살까`, false),
		newPattern(KeyFood, "🍽️ 무엇을 먹을까", "🍽", `무엇을\s*먹을까`, false),
		newPattern(KeyFunFact, "🎯 재미있는 점", "🎯", `재미있는\s*점`, false),
		newPattern(KeyFriendship, "😊 친구가 되려면", "😊", `친구가\s*되려면`, true),
	}

	bracketPattern = regexp.MustCompile(`\[([^\]]+)\]`)
	leakedENLabel  = regexp.MustCompile(`(?i)(?:🐛\x{FE0F}?\s*)?(?:곤충\s*이름\s*)?\(\s*영문\s*\)\s*[:：]`)
)

func newPattern(key, header, emoji, words string, stopAtBlankLine bool) labelPattern {
	marker := `(?i)` + emoji + `\x{FE0F}?\s*` + words
	return labelPattern{
		Label:           Label{Key: key, Header: header},
		marker:          regexp.MustCompile(marker),
		header:          regexp.MustCompile(marker + `\s*[:：]`),
		stopAtBlankLine: stopAtBlankLine,
	}
}

// Labels returns the template labels in answer order.
func Labels() []Label {
	out := make([]Label, len(patterns))
	for i, p := range patterns {
		out[i] = p.Label
	}
	return out
}

// Fields maps JSON keys to extracted fields. Every known key is always set.
type Fields map[string]Field

// Extract parses text against the eight-label template.
func Extract(text string) Fields {
	var bounds []int
	for _, p := range patterns {
		for _, loc := range p.marker.FindAllStringIndex(text, -1) {
			bounds = append(bounds, loc[0])
		}
	}
	sort.Ints(bounds)

	raw := make(map[string]string, len(patterns))
	out := make(Fields, len(patterns))
	for _, p := range patterns {
		loc := p.header.FindStringIndex(text)
		if loc == nil {
			out[p.Key] = Field{}
			continue
		}
		start := loc[1]
		end := len(text)
		if i := sort.SearchInts(bounds, start); i < len(bounds) {
			end = bounds[i]
		}
		if p.stopAtBlankLine {
			body := text[start:end]
			start += len(body) - len(strings.TrimLeft(body, " \t\r\n"))
			if idx := strings.Index(text[start:end], "\n\n"); idx >= 0 {
				end = start + idx
			}
		}
		raw[p.Key] = text[start:end]
		out[p.Key] = Field{Present: true}
	}

	repairLeakedEnglishName(raw, out)

	for key, content := range raw {
		f := out[key]
		f.Value = cleanValue(content)
		out[key] = f
	}
	return out
}

// repairLeakedEnglishName handles answers where the English-name line lost its
// emoji and ended up inside the Korean-name content.
func repairLeakedEnglishName(raw map[string]string, out Fields) {
	if strings.TrimSpace(raw[KeyNameEN]) != "" {
		return
	}
	korean, ok := raw[KeyName]
	if !ok {
		return
	}
	loc := leakedENLabel.FindStringIndex(korean)
	if loc == nil {
		return
	}
	english := strings.TrimSpace(korean[loc[1]:])
	if nl := strings.IndexByte(english, '\n'); nl >= 0 {
		english = english[:nl]
	}
	raw[KeyName] = korean[:loc[0]]
	raw[KeyNameEN] = english
	out[KeyNameEN] = Field{Present: true}
}

func cleanValue(content string) string {
	content = strings.TrimSpace(content)
	if m := bracketPattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return content
}

// Value returns the extracted value for key, empty when absent.
func (f Fields) Value(key string) string {
	return f[key].Value
}

// Map flattens the fields into key -> value, absent labels mapping to "".
func (f Fields) Map() map[string]string {
	out := make(map[string]string, len(patterns))
	for _, p := range patterns {
		out[p.Key] = f[p.Key].Value
	}
	return out
}

// Missing lists the keys whose label did not appear, in template order.
func (f Fields) Missing() []string {
	var missing []string
	for _, p := range patterns {
		if !f[p.Key].Present {
			missing = append(missing, p.Key)
		}
	}
	return missing
}
