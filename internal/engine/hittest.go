package engine

import (
	"math"

	"spatial-layer/internal/mercator"
	"spatial-layer/internal/metrics"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
)

// Hit：命中测试结果；Distance 为经纬度平面上的欧氏距离（度）
type Hit struct {
	ID       uint32
	Type     uint16
	Lat      float64
	Lon      float64
	Distance float64
}

// 搜索方框外扩量，吸收 lat±tol 的浮点舍入；精确判定仍按 tol
const hitPad = 1e-9

// 文档注释：点击拾取
// 背景：以查询点为中心、边长 2·tol 的方框限定索引桶，候选点按度空间欧氏距离取最近者；
// 容差本身以度给出，与上游固定容差拾取一致，不做大圆距离。
// 约束：距离 <= tol 才算命中；等距时取最小 id；空库、负容差或非有限输入返回未命中。
func (e *Engine) HitTest(lat, lon, toleranceDeg float64) (Hit, bool) {
	s := e.snap.Load()
	if s.store.Len() == 0 || !(toleranceDeg >= 0) || math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(toleranceDeg, 0) {
		metrics.HitTestsTotal.WithLabelValues("miss").Inc()
		return Hit{}, false
	}
	q := r2.Point{X: lon, Y: lat}
	side := 2 * (toleranceDeg + hitPad)
	box := r2.RectFromCenterSize(q, r2.Point{X: side, Y: side})
	// 世界坐标 y 向南递增：西北角为 Min，东南角为 Max
	nw := mercator.Project(box.Y.Hi, box.X.Lo)
	se := mercator.Project(box.Y.Lo, box.X.Hi)

	var best Hit
	found := false
	s.index.Rect(orb.Bound{Min: nw, Max: se}, func(i int) {
		p := s.store.At(i)
		d := r2.Point{X: p.Lon, Y: p.Lat}.Sub(q).Norm()
		if d > toleranceDeg {
			return
		}
		if !found || d < best.Distance || (d == best.Distance && p.ID < best.ID) {
			best = Hit{ID: p.ID, Type: p.Type, Lat: p.Lat, Lon: p.Lon, Distance: d}
			found = true
		}
	})
	if found {
		metrics.HitTestsTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.HitTestsTotal.WithLabelValues("miss").Inc()
	}
	return best, found
}
