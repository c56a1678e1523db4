package tracing

import (
	"strings"
)

const (
	// DefaultMaxLength 默认最大属性长度
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxRedisLength   = 100
	// MaxResumeLength 简历文本片段最大长度
	MaxResumeLength = 150
)

// piiKeywords 属性名包含这些关键字时值需要掩码
var piiKeywords = []string{
	"email",
	"phone",
	"password",
	"address",
	"name",
	"secret",
	"token",
	"api_key",
	"link",
}

// SafeAttributeValue 敏感属性返回掩码值，其余按 maxLength 截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lowerName := strings.ToLower(name)
	// filename 不视为姓名
	if lowerName != "filename" && !strings.HasSuffix(lowerName, ".filename") {
		for _, keyword := range piiKeywords {
			if strings.Contains(lowerName, keyword) {
				return MaskPII(value)
			}
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 对个人敏感信息进行掩码处理
//
//	"Ali"                -> "A*i"
//	"amira@example.com"  -> "am*************om"
func MaskPII(value string) string {
	if value == "" {
		return ""
	}

	runes := []rune(value)
	length := len(runes)

	switch {
	case length <= 1:
		return "*"
	case length == 2:
		return string(runes[0:1]) + "*"
	case length <= 4:
		return string(runes[0:1]) + strings.Repeat("*", length-2) + string(runes[length-1:])
	}
	return string(runes[0:2]) + strings.Repeat("*", length-4) + string(runes[length-2:])
}

// TruncateString 保留首尾，中间以 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}

	half := (maxLength - 3) / 2
	if half < 1 {
		half = 1
	}
	return string(runes[:half]) + "..." + string(runes[len(runes)-half:])
}

func SafeSQL(sql string) string {
	return TruncateString(sql, MaxSQLLength)
}

func SafeRedisKey(key string) string {
	return TruncateString(key, MaxRedisLength)
}

// SafeResumeContent 简历文本只保留开头片段并掩盖邮箱
func SafeResumeContent(content string) string {
	fields := strings.Fields(TruncateString(content, MaxResumeLength))
	for i, f := range fields {
		if strings.Contains(f, "@") {
			fields[i] = MaskPII(f)
		}
	}
	return strings.Join(fields, " ")
}
