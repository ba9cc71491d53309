package handlers

import (
	"fmt"
	"hash/fnv"
	"html"
	"log"
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

var avatarPalette = []string{"#7878FF", "#FF5A5A", "#33B679", "#F4B400", "#8E24AA", "#039BE5", "#E67C73", "#616161"}

// ServeFile отдаёт исходный файл; превью и view отличаются только URL,
// трансформации выполняет CDN перед сервисом
func ServeFile(c *gin.Context) {
	if c.Param("bucket") != mediaService.BucketID() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Bucket not found"})
		return
	}

	rc, file, err := mediaService.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "File not found.")
		return
	}
	defer func() {
		if err := rc.Close(); err != nil {
			log.Printf("WARN: failed to close file %s: %v", file.ID, err)
		}
	}()

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, file.Size, contentType, rc, map[string]string{
		"Cache-Control": "public, max-age=31536000, immutable",
	})
}

// AvatarInitials рисует SVG аватар с инициалами имени
func AvatarInitials(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="100" height="100" viewBox="0 0 100 100">`+
		`<rect width="100" height="100" fill="%s"/>`+
		`<text x="50" y="50" dy=".35em" text-anchor="middle" font-family="sans-serif" font-size="40" fill="#FFFFFF">%s</text>`+
		`</svg>`, avatarColor(name), html.EscapeString(Initials(name)))

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/svg+xml", []byte(svg))
}

// Initials - первые буквы первых двух слов в верхнем регистре
func Initials(name string) string {
	var initials []rune
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				initials = append(initials, unicode.ToUpper(r))
				break
			}
		}
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

func avatarColor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return avatarPalette[h.Sum32()%uint32(len(avatarPalette))]
}
