// Package prompt renders translation prompt templates.
package prompt

import "strings"

const (
	VarTargetLanguage = "targetLanguage"
	VarContent        = "content"
	VarJSONString     = "jsonString"
)

// Render replaces every {name} placeholder with its value. Values are
// inserted literally. Placeholders without a value are left as they are.
func Render(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}

	pairs := make([]string, 0, len(vars)*2)
	for name, value := range vars {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Standard renders a prose/markup template.
func Standard(template, targetLanguage, content string) string {
	return Render(template, map[string]string{
		VarTargetLanguage: targetLanguage,
		VarContent:        content,
	})
}

// JSON renders a structure-preserving template.
func JSON(template, targetLanguage, jsonString string) string {
	return Render(template, map[string]string{
		VarTargetLanguage: targetLanguage,
		VarJSONString:     jsonString,
	})
}
