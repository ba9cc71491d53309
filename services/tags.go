package services

import (
	"strings"
	"unicode"

	"github.com/overstreetbilly/snapgram/models"
)

// ParseTags превращает строку вида "a, b,c" в набор тегов.
// Пробельные символы удаляются целиком, пустые элементы и повторы отбрасываются.
func ParseTags(csv string) models.StringArray {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, csv)

	tags := models.StringArray{}
	if compact == "" {
		return tags
	}

	seen := make(map[string]struct{})
	for _, tag := range strings.Split(compact, ",") {
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
