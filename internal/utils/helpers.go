package utils

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
)

// TimePtr returns a pointer to a time.Time object
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CalculateMD5 computes the MD5 hash of a byte slice.
func CalculateMD5(data []byte) string {
	hasher := md5.New()
	hasher.Write(data)
	return hex.EncodeToString(hasher.Sum(nil))
}

// TitleCase 将每个单词首字母大写、其余小写，例如 "bachelor of science" -> "Bachelor Of Science"
// cases.Caser 不是并发安全的，因此每次调用都新建
func TitleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// CollapseSpaces 将连续空白（含换行、制表符）折叠为单个空格并去除首尾空白
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var bracketQuoteReplacer = strings.NewReplacer("Â«", "", "Â»", "", "«", "", "»", "")

// StripBracketQuotes 去掉书名号式引号 « » 及其 UTF-8 被按 Latin-1 解码后的乱码形式
func StripBracketQuotes(s string) string {
	return bracketQuoteReplacer.Replace(s)
}

// ConvertArrayToJSON 辅助函数: 将字符串数组转换为JSON
func ConvertArrayToJSON(arr []string) datatypes.JSON {
	if len(arr) == 0 {
		return datatypes.JSON("[]")
	}

	jsonBytes, err := json.Marshal(arr)
	if err != nil {
		// 简单数组的序列化失败时返回空数组
		return datatypes.JSON("[]")
	}

	return datatypes.JSON(jsonBytes)
}

// JSONToArray 将JSON数组列还原为字符串切片，解析失败返回空切片
func JSONToArray(data datatypes.JSON) []string {
	out := []string{}
	if len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}
