package admin

import "github.com/yieldtree/incentive-engine/internal/provider"

// Handler 运维管理接口处理器入口
type Handler struct {
	*provider.Container
}

// New 创建后台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
