package media

import "regexp"

// .../upload/[v<version>/]<public_id>.<ext>
var publicIDPattern = regexp.MustCompile(`/upload/(?:v\d+/)?(.+)\.\w+$`)

// PublicID 从媒体 URL 中解析出存储端 public id，用于删除请求。
// 无法匹配时返回 ok=false，调用方应过滤掉这类 URL。
func PublicID(url string) (string, bool) {
	m := publicIDPattern.FindStringSubmatch(url)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}
