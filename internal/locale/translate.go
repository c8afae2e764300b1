package locale

// Pick returns the text matching the request language, defaulting to Chinese.
func Pick(language, english, chinese string) string {
	if NormalizeLanguage(language) == LanguageEnglish {
		if english != "" {
			return english
		}
		return chinese
	}
	if chinese != "" {
		return chinese
	}
	return english
}

// 错误消息键。
const (
	MsgInvalidRequest     = "invalid_request"
	MsgUnauthorized       = "unauthorized"
	MsgForbidden          = "forbidden"
	MsgPostNotFound       = "post_not_found"
	MsgCommentNotFound    = "comment_not_found"
	MsgInvalidStatus      = "invalid_status"
	MsgInvalidInteraction = "invalid_interaction"
	MsgInvalidUser        = "invalid_user"
	MsgCorruptRecord      = "corrupt_record"
	MsgUploadFailed       = "upload_failed"
	MsgNotImage           = "not_image"
	MsgVersionMismatch    = "version_mismatch"
	MsgStorageUnavailable = "storage_unavailable"
	MsgInternal           = "internal"
	MsgInvalidBackup      = "invalid_backup"
	MsgEmptyComment       = "empty_comment"
)

var catalog = map[string][2]string{
	MsgInvalidRequest:     {"Invalid request parameters", "请求参数错误"},
	MsgUnauthorized:       {"Please sign in first", "请先登录"},
	MsgForbidden:          {"You do not have permission to do this", "无权执行此操作"},
	MsgPostNotFound:       {"Post not found", "文章不存在"},
	MsgCommentNotFound:    {"Comment not found", "评论不存在"},
	MsgInvalidStatus:      {"Invalid post status", "无效的文章状态"},
	MsgInvalidInteraction: {"Unsupported interaction type", "不支持的互动类型"},
	MsgInvalidUser:        {"Invalid user", "无效的用户"},
	MsgCorruptRecord:      {"Some records could not be read", "部分记录无法读取"},
	MsgUploadFailed:       {"Image upload failed", "图片上传失败"},
	MsgNotImage:           {"Only png, jpeg, gif or webp images are allowed", "只允许上传 png、jpeg、gif 或 webp 图片"},
	MsgVersionMismatch:    {"Backup version does not match", "备份文件版本不匹配"},
	MsgStorageUnavailable: {"Storage is unavailable", "存储暂不可用"},
	MsgInternal:           {"Internal server error", "服务器内部错误"},
	MsgInvalidBackup:      {"Backup file is not valid", "备份文件格式错误"},
	MsgEmptyComment:       {"Comment cannot be empty", "评论内容不能为空"},
}

// Message looks up key in the catalog; unknown keys are returned as is.
func Message(language, key string) string {
	texts, ok := catalog[key]
	if !ok {
		return key
	}
	return Pick(language, texts[0], texts[1])
}
