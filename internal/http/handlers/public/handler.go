package public

import "github.com/license-ledger/internal/provider"

// Handler 用户侧接口处理器入口
// 说明：该处理器仅用于登录用户查询账本与发起提现。
type Handler struct {
	*provider.Container
}

// New 创建用户侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
