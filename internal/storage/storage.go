package storage

import "errors"

var (
	// ErrMessageNotFound 邮件未找到错误
	ErrMessageNotFound = errors.New("message not found")
	// ErrClassificationNotFound 分类记录未找到错误
	ErrClassificationNotFound = errors.New("classification not found")
	// ErrExtractionNotFound 提取结果未找到错误
	ErrExtractionNotFound = errors.New("extraction not found")
	// ErrPublishResultNotFound 发布记录未找到错误
	ErrPublishResultNotFound = errors.New("publish result not found")
	// ErrRunNotFound 流水线运行记录未找到错误
	ErrRunNotFound = errors.New("pipeline run not found")
	// ErrVersionConflict 同一邮件的同一分类版本已存在
	ErrVersionConflict = errors.New("classification version conflict")
	// ErrAlreadyResolved 预定发布记录已被解析为终态
	ErrAlreadyResolved = errors.New("scheduled post already resolved")
)
