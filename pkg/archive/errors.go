package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrPathTraversal 条目名包含 ".." 或绝对路径
	ErrPathTraversal = errors.New("压缩包条目路径越界")

	// ErrTooLarge 解压后总大小超过上限
	ErrTooLarge = errors.New("压缩包解压后大小超出上限")
)

// RejectedError 压缩包未通过校验，未写入任何内容
type RejectedError struct {
	Archive string
	Entry   string
	Reason  error
}

func (e *RejectedError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("拒绝压缩包 %s: %v", e.Archive, e.Reason)
	}
	return fmt.Sprintf("拒绝压缩包 %s (条目 %s): %v", e.Archive, e.Entry, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return e.Reason
}
