package i18n

// ZhCNMessages 简体中文提示文案
var ZhCNMessages = map[string]string{
	"notice.inserted":          "已向 %[2]s 插入 %[1]d 个排序后的任务。",
	"notice.no_tasks":          "在配置的目录中没有找到未完成任务。",
	"notice.no_priorities":     "没有找到标题 %q 下的优先事项。",
	"notice.nothing_to_insert": "排序结果中没有可用的任务。",
	"notice.cancelled":         "已取消。",

	"error.no_active":    "没有活动文档，请用 --file 指定。",
	"error.credential":   "未配置 API key，请设置 TASKRANK_API_KEY 或 provider.api_key。",
	"error.incompatible": "任务索引服务不存在或不兼容。",
	"error.failed":       "排序失败：%s",

	"prompt.count":   "要排序多少个任务？",
	"prompt.invalid": "请输入正整数。",
	"prompt.hint":    "回车确认 · esc 取消",

	"index.rebuilt":    "已索引 %d 个文档、%d 个锚点、%d 个任务。",
	"init.created":     "已创建 %s",
	"init.exists":      "配置已存在：%s",
	"doctor.vault":     "Vault",
	"doctor.config":    "配置",
	"doctor.model":     "模型",
	"doctor.heading":   "优先事项标题",
	"doctor.strategy":  "收集策略",
	"doctor.taskindex": "任务索引",
	"doctor.api_key":   "API key",
	"doctor.set":       "已设置",
	"doctor.missing":   "缺失",
}
