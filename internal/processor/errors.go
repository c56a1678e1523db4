package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrReadFailed     = errors.New("读取文档失败")
	ErrDecodeFailed   = errors.New("解析文档内容失败")
	ErrEmptyDocument  = errors.New("文档文本为空")
	ErrDuplicateText  = errors.New("文本已处理过")
	ErrPersistFailed  = errors.New("保存档案失败")
	ErrPublishFailed  = errors.New("发布消息失败")
	ErrMalformedInput = errors.New("输入格式错误")
)

// ProfileProcessError 包含文件名和操作阶段的处理错误
type ProfileProcessError struct {
	Filename string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ProfileProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s): %s", e.BaseErr, e.Op, e.Filename, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.Filename)
}

func (e *ProfileProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ProfileProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewReadError(filename, detail string) error {
	return &ProfileProcessError{Filename: filename, Op: "read", BaseErr: ErrReadFailed, Detail: detail}
}

func NewDecodeError(filename, detail string) error {
	return &ProfileProcessError{Filename: filename, Op: "decode", BaseErr: ErrDecodeFailed, Detail: detail}
}

func NewEmptyError(filename string) error {
	return &ProfileProcessError{Filename: filename, Op: "extract", BaseErr: ErrEmptyDocument}
}

func NewDuplicateError(filename, textMD5 string) error {
	return &ProfileProcessError{Filename: filename, Op: "dedup", BaseErr: ErrDuplicateText, Detail: "md5=" + textMD5}
}

func NewPersistError(filename, detail string) error {
	return &ProfileProcessError{Filename: filename, Op: "persist", BaseErr: ErrPersistFailed, Detail: detail}
}

func NewPublishError(filename, detail string) error {
	return &ProfileProcessError{Filename: filename, Op: "publish", BaseErr: ErrPublishFailed, Detail: detail}
}
