package redis

import "fmt"

// DealEventStream 活动事件 outbox 的默认 stream 名。
const DealEventStream = "storefront:deal_events"

// MediaFailureStream 记录删除失败的远端图片。
const MediaFailureStream = "storefront:media:destroy_failed"

// AdminRateLimitKey 后台写接口按管理员令牌限流。
func AdminRateLimitKey(tokenHash string) string {
	return fmt.Sprintf("rate_limit:admin:token:%s", tokenHash)
}

// IPRateLimitKey 没有令牌时按 IP 限流。
func IPRateLimitKey(ip string) string {
	return fmt.Sprintf("rate_limit:admin:ip:%s", ip)
}
