package app

import (
	"fmt"
	"strings"

	"gopherai-insect/internal/pkg/fieldextract"
)

var labelHints = map[string]string{
	fieldextract.KeyName:       "곤충의 이름 (쉬운 한국어로)",
	fieldextract.KeyNameEN:     "곤충의 이름 (영문으로)",
	fieldextract.KeyType:       "어떤 종류의 곤충인지 쉽게 설명",
	fieldextract.KeyAppearance: "어떻게 생겼는지, 색깔이나 모양 등을 재미있게 설명",
	fieldextract.KeyHabitat:    "어디서 만날 수 있는지",
	fieldextract.KeyFood:       "무엇을 좋아해서 먹는지",
	fieldextract.KeyFunFact:    "이 곤충의 신기하고 재미있는 특징",
	fieldextract.KeyFriendship: "이 곤충과 친하게 지내는 방법이나 주의할 점",
}

// ClassificationPrompt is the kid-friendly instruction sent with every image.
// The answer template is rendered from the extractor's labels so the two
// never drift apart.
func ClassificationPrompt() string {
	var b strings.Builder
	b.WriteString("안녕! 나는 곤충 박사야! 🐛\n")
	b.WriteString("이 사진에 있는 곤충 친구를 알아보자!\n\n")
	b.WriteString("다음처럼 쉽고 재미있게 설명해줄게:\n\n")
	for _, label := range fieldextract.Labels() {
		fmt.Fprintf(&b, "%s: [%s]\n", label.Header, labelHints[label.Key])
	}
	b.WriteString("\n만약 곤충이 아니라면, \"어? 이건 곤충이 아니야! 이것은 [무엇인지]이야~\" 라고 친근하게 설명해줘.\n\n")
	b.WriteString("모든 설명은 10살 어린이가 쉽게 이해할 수 있도록 간단하고 재미있게 해줘. ")
	b.WriteString("무서운 표현은 피하고 긍정적이고 호기심을 자극하는 방식으로 설명해줘! ")
	b.WriteString("이모지도 적절히 사용해서 더 재미있게 만들어줘.")
	return b.String()
}

// CharacterStyle is a selectable rendering style for generated characters.
type CharacterStyle struct {
	Name   string `json:"name"`
	Prompt string `json:"-"`
}

var characterStyles = []CharacterStyle{
	{Name: "귀여운 만화 스타일", Prompt: "cute cartoon style, chibi proportions, big sparkling eyes"},
	{Name: "픽사 애니메이션 스타일", Prompt: "pixar style 3d animated character, soft lighting"},
	{Name: "일본 애니메이션 스타일", Prompt: "anime style, cel shading, kawaii"},
	{Name: "미니멀 캐릭터 스타일", Prompt: "minimal flat vector character, simple shapes"},
	{Name: "3D 렌더링 스타일", Prompt: "3d render, clay material, smooth shading"},
}

const characterNegativePrompt = "scary, realistic insect, gore, horror, dark, text, watermark, blurry, extra legs, deformed"

// CharacterStyles lists the available styles, default first.
func CharacterStyles() []CharacterStyle {
	out := make([]CharacterStyle, len(characterStyles))
	copy(out, characterStyles)
	return out
}

func findStyle(name string) (CharacterStyle, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return characterStyles[0], true
	}
	for _, s := range characterStyles {
		if s.Name == name {
			return s, true
		}
	}
	return CharacterStyle{}, false
}

// CharacterTraits are optional details that sharpen the generated character.
type CharacterTraits struct {
	Type       string `json:"type"`
	Appearance string `json:"appearance"`
	Habitat    string `json:"habitat"`
}

// CharacterPrompt interpolates the insect keyword into the character template.
func CharacterPrompt(keyword string, style CharacterStyle, traits CharacterTraits) string {
	parts := []string{
		fmt.Sprintf("a cute friendly %s insect character for children", keyword),
		style.Prompt,
		"pastel colors, smiling face, round body, white background, high quality illustration",
	}
	if t := strings.TrimSpace(traits.Type); t != "" {
		parts = append(parts, "kind: "+t)
	}
	if a := strings.TrimSpace(traits.Appearance); a != "" {
		parts = append(parts, "features: "+a)
	}
	if h := strings.TrimSpace(traits.Habitat); h != "" {
		parts = append(parts, "scene hint: "+h)
	}
	return strings.Join(parts, ", ")
}

// VoiceSummary turns extracted fields into a short narration script.
func VoiceSummary(fields map[string]string) string {
	var lines []string
	if name := fields[fieldextract.KeyName]; name != "" {
		lines = append(lines, fmt.Sprintf("이 곤충은 %s예요.", name))
	}
	if v := fields[fieldextract.KeyAppearance]; v != "" {
		lines = append(lines, v)
	}
	if v := fields[fieldextract.KeyHabitat]; v != "" {
		lines = append(lines, "사는 곳은 "+v+".")
	}
	if v := fields[fieldextract.KeyFood]; v != "" {
		lines = append(lines, "좋아하는 먹이는 "+v+".")
	}
	if v := fields[fieldextract.KeyFunFact]; v != "" {
		lines = append(lines, v)
	}
	if v := fields[fieldextract.KeyFriendship]; v != "" {
		lines = append(lines, v)
	}
	return strings.Join(lines, " ")
}
