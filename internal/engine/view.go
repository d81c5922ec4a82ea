package engine

// 文档注释：固定到某一已发布快照的只读视图
// 背景：缓存键与查询结果必须来自同一快照；先取视图再读版本和查询，期间发布的新加载不会混入。
// 约束：零值视图表示无快照，查询返回空。
type View struct {
	s *snapshot
}

// View：当前已发布快照的视图
func (e *Engine) View() View { return View{s: e.snap.Load()} }

// Version：快照内容指纹；相同数据在不同实例、不同启动间一致
func (v View) Version() string {
	if v.s == nil {
		return ""
	}
	return v.s.version
}

// Generation：本进程内的发布代数
func (v View) Generation() uint64 {
	if v.s == nil {
		return 0
	}
	return v.s.gen
}

func (v View) Len() int {
	if v.s == nil {
		return 0
	}
	return v.s.store.Len()
}

func (v View) MemoryUsage() uint64 {
	if v.s == nil {
		return 0
	}
	return v.s.mem
}
