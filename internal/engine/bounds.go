package engine

import (
	"math"

	"spatial-layer/internal/mercator"
	"spatial-layer/internal/pointstore"

	"github.com/paulmach/orb"
)

// Bounds：数据包围盒、包围盒中点与建议缩放级别
type Bounds struct {
	MinLat        float64
	MaxLat        float64
	MinLon        float64
	MaxLon        float64
	CenterLat     float64
	CenterLon     float64
	SuggestedZoom int
}

// Bound：以 orb.Bound（经度为 X）表示的包围盒
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.MinLon, b.MinLat}, Max: orb.Point{b.MaxLon, b.MaxLat}}
}

// Bounds：最近一次加载的包围盒；无数据时返回 false
func (e *Engine) Bounds() (Bounds, bool) {
	s := e.snap.Load()
	return s.bounds, s.hasBounds
}

// 文档注释：计算包围盒与建议缩放（每次加载一次）
// 背景：中心取包围盒中点而非点的质心，便于相机居中后整个范围对称可见。
func computeBounds(st *pointstore.Store, opts Options) (Bounds, bool) {
	pts := st.Points()
	if len(pts) == 0 {
		return Bounds{}, false
	}
	bb := orb.Bound{Min: orb.Point{pts[0].Lon, pts[0].Lat}, Max: orb.Point{pts[0].Lon, pts[0].Lat}}
	for _, p := range pts[1:] {
		bb = bb.Extend(orb.Point{p.Lon, p.Lat})
	}
	c := bb.Center()
	b := Bounds{
		MinLat:    bb.Min.Lat(),
		MaxLat:    bb.Max.Lat(),
		MinLon:    bb.Min.Lon(),
		MaxLon:    bb.Max.Lon(),
		CenterLat: c.Lat(),
		CenterLon: c.Lon(),
	}
	b.SuggestedZoom = SuggestZoom(bb, opts.ReferenceViewport, opts.MaxZoom)
	return b, true
}

// 文档注释：建议缩放级别
// 背景：包围盒在 z 级的投影跨度为 span·TileSize·2^z 像素，取其不超过参考视口的最大整数 z。
// 约束：结果钳制在 [0, maxZoom]；跨度为零（单点或重合点）时返回 maxZoom。
func SuggestZoom(bb orb.Bound, viewport float64, maxZoom int) int {
	nw := mercator.Project(bb.Max.Lat(), bb.Min.Lon())
	se := mercator.Project(bb.Min.Lat(), bb.Max.Lon())
	span := math.Max(se[0]-nw[0], se[1]-nw[1])
	if span <= 0 {
		return maxZoom
	}
	z := int(math.Floor(math.Log2(viewport / (mercator.TileSize * span))))
	if z < 0 {
		return 0
	}
	if z > maxZoom {
		return maxZoom
	}
	return z
}
