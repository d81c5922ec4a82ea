package engine

// 文档注释：设置类型到颜色的映射
// 背景：仅透传保存，供栅格化方按点类型取色；整体替换，不与旧映射合并。
func (e *Engine) SetStyles(styles map[uint16]uint32) {
	m := make(map[uint16]uint32, len(styles))
	for k, v := range styles {
		m[k] = v
	}
	e.styles.Store(&m)
}

// Styles：当前映射的副本
func (e *Engine) Styles() map[uint16]uint32 {
	p := e.styles.Load()
	out := make(map[uint16]uint32)
	if p == nil {
		return out
	}
	for k, v := range *p {
		out[k] = v
	}
	return out
}

// Color：按类型取色，未配置时返回 fallback
func (e *Engine) Color(typ uint16, fallback uint32) uint32 {
	if p := e.styles.Load(); p != nil {
		if c, ok := (*p)[typ]; ok {
			return c
		}
	}
	return fallback
}
