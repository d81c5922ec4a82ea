package engine

import (
	"time"

	"spatial-layer/internal/mercator"
	"spatial-layer/internal/metrics"

	"github.com/paulmach/orb/maptile"
)

// TilePoint：瓦片内归一化坐标 [0,1)×[0,1) 与点类型；ID 便于调用方关联命中结果
type TilePoint struct {
	X    float32
	Y    float32
	Type uint16
	ID   uint32
}

// 文档注释：瓦片点查询
// 背景：按 XYZ 瓦片编号返回落在瓦片内的点；边界点按半开区间归属 floor 所在瓦片，跨瓦片不重复不遗漏。
// 约束：顺序不作保证；空库、空瓦片或非法编号返回空结果，不返回错误。
func (e *Engine) TileQuery(x, y, z int) []TilePoint {
	return e.View().TileQuery(x, y, z)
}

// TileQuery：在视图固定的快照上执行瓦片查询，语义同 Engine.TileQuery
func (v View) TileQuery(x, y, z int) []TilePoint {
	t0 := time.Now()
	metrics.TileQueriesTotal.Inc()
	s := v.s
	if s == nil {
		return nil
	}
	if s.store.Len() == 0 || !mercator.ValidTile(x, y, z) {
		metrics.TilePoints.Observe(0)
		return nil
	}
	t := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	var out []TilePoint
	s.index.Tile(t, func(i int) {
		nx, ny := mercator.InTile(s.index.World(i), t)
		p := s.store.At(i)
		out = append(out, TilePoint{X: nx, Y: ny, Type: p.Type, ID: p.ID})
	})
	metrics.TilePoints.Observe(float64(len(out)))
	metrics.TileQueryDurationMs.Observe(float64(time.Since(t0).Microseconds()) / 1000)
	return out
}
