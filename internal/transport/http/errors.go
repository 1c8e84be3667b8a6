package httptransport

import (
	"agenticflow/backend/internal/social"
	"agenticflow/backend/internal/storage"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	// 存储错误
	storage.ErrMessageNotFound:        "邮件不存在",
	storage.ErrClassificationNotFound: "分类结果不存在",
	storage.ErrExtractionNotFound:     "提取结果不存在",
	storage.ErrPublishResultNotFound:  "发布记录不存在",
	storage.ErrRunNotFound:            "运行记录不存在",
	storage.ErrVersionConflict:        "分类版本冲突",
	storage.ErrAlreadyResolved:        "预定发布已被解析",

	// 社交发布错误
	social.ErrNotConnected:       "平台未连接",
	social.ErrEmptyContent:       "发布内容不能为空",
	social.ErrInvalidCredentials: "平台凭据无效",
	social.ErrNoEndpoint:         "平台未配置发布端点",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidDuration  = "时长格式无效"
	MsgInvalidTime      = "时间格式无效，请使用 RFC3339 格式"
	MsgInvalidPlatform  = "平台标识无效"
	MsgRequestBodyEmpty = "请求体不能为空"

	// 认证相关
	MsgAuthRequired       = "需要登录认证"
	MsgInvalidCredentials = "用户名或密码错误"
	MsgTokenExpired       = "登录已过期，请重新登录"
	MsgTokenInvalid       = "无效的访问令牌"

	// 邮件相关
	MsgMessageNotFound   = "邮件不存在"
	MsgMessageListFailed = "获取邮件列表失败"
	MsgMessageGetFailed  = "获取邮件详情失败"
	MsgMessageSaveFailed = "保存邮件失败"

	// 分析相关
	MsgAnalyzeFailed            = "邮件分析失败"
	MsgClassificationNotFound   = "分类结果不存在"
	MsgClassificationListFailed = "获取分类历史失败"

	// 新闻简报相关
	MsgExtractionNotFound = "提取结果不存在"
	MsgExtractFailed      = "新闻简报提取失败"

	// 回复相关
	MsgReplyFailed     = "生成回复失败"
	MsgReplyListFailed = "获取回复列表失败"
	MsgSendReplyFailed = "发送回复失败"
	MsgGmailDisabled   = "Gmail 邮件源未启用"

	// 社交发布相关
	MsgConnectFailed    = "连接平台失败"
	MsgFormatFailed     = "格式化帖子失败"
	MsgPublishFailed    = "发布失败"
	MsgPublishGetFailed = "获取发布记录失败"

	// 流水线相关
	MsgRunNotFound   = "运行记录不存在"
	MsgRunListFailed = "获取运行记录失败"
	MsgProcessFailed = "流水线处理失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
