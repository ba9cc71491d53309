package models

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringArray - набор строк, хранится как text[] в PostgreSQL и как
// литерал массива {a,b,c} в text-колонке на остальных диалектах
type StringArray []string

// GormDBDataType выбирает тип колонки под диалект
func (StringArray) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return formatArrayLiteral(a), nil
}

func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = StringArray{}
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return a.scanString(string(v))
	case string:
		return a.scanString(v)
	case []string:
		*a = v
		return nil
	default:
		return fmt.Errorf("StringArray.Scan: cannot scan %T into StringArray", src)
	}
}

// Contains сообщает, есть ли значение в наборе
func (a StringArray) Contains(value string) bool {
	for _, v := range a {
		if v == value {
			return true
		}
	}
	return false
}

func (a *StringArray) scanString(s string) error {
	elements, err := parseArrayLiteral(s)
	if err != nil {
		return fmt.Errorf("StringArray.Scan: %w", err)
	}
	*a = elements
	return nil
}

func parseArrayLiteral(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}, nil
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil, fmt.Errorf("invalid array format: must be enclosed in braces")
	}

	s = s[1 : len(s)-1]
	if s == "" {
		return []string{}, nil
	}

	var elements []string
	var current bytes.Buffer
	inQuotes := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]

		if escaped {
			current.WriteByte(ch)
			escaped = false
			continue
		}

		switch ch {
		case '\\':
			escaped = true
		case '"':
			inQuotes = !inQuotes
		case ',':
			if inQuotes {
				current.WriteByte(ch)
				continue
			}
			elements = append(elements, current.String())
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("invalid array format: unterminated quote")
	}
	elements = append(elements, current.String())

	return elements, nil
}

func formatArrayLiteral(elements []string) string {
	if len(elements) == 0 {
		return "{}"
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, elem := range elements {
		if i > 0 {
			buf.WriteByte(',')
		}

		// Кавычим всё, что может сломать разбор, включая пустую строку и NULL
		needsQuote := elem == "" ||
			strings.ContainsAny(elem, "{},\"\\ \t\n\r") ||
			strings.EqualFold(elem, "null")
		if !needsQuote {
			buf.WriteString(elem)
			continue
		}

		buf.WriteByte('"')
		for j := 0; j < len(elem); j++ {
			ch := elem[j]
			if ch == '\\' || ch == '"' {
				buf.WriteByte('\\')
			}
			buf.WriteByte(ch)
		}
		buf.WriteByte('"')
	}
	buf.WriteByte('}')
	return buf.String()
}
