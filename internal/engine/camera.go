package engine

import (
	"math"

	"spatial-layer/internal/mercator"
	"spatial-layer/internal/metrics"

	"github.com/paulmach/orb"
)

// CameraState：当前视口；宽高为逻辑点，Density 为每点像素数
type CameraState struct {
	Lat       float64
	Lon       float64
	Zoom      float64
	WidthPts  float64
	HeightPts float64
	Density   float64
}

// 文档注释：更新相机
// 背景：由地图视图每帧至多调用一次，节流由调用方负责；引擎只保存最后一次有效状态。
// 约束：宽或高非正（含 NaN）时静默忽略，保留上一次有效状态。
func (e *Engine) CameraUpdate(lat, lon, zoom, widthPts, heightPts, density float64) {
	if !(widthPts > 0) || !(heightPts > 0) {
		metrics.CameraUpdatesTotal.WithLabelValues("ignored").Inc()
		return
	}
	c := CameraState{Lat: lat, Lon: lon, Zoom: zoom, WidthPts: widthPts, HeightPts: heightPts, Density: density}
	e.camera.Store(&c)
	metrics.CameraUpdatesTotal.WithLabelValues("ok").Inc()
}

// Camera：最近一次有效相机状态；从未设置时返回 false
func (e *Engine) Camera() (CameraState, bool) {
	c := e.camera.Load()
	if c == nil {
		return CameraState{}, false
	}
	return *c, true
}

// WorldSize：当前缩放下世界宽度（逻辑点），支持小数缩放
func (c CameraState) WorldSize() float64 {
	return mercator.TileSize * math.Exp2(c.Zoom)
}

// 文档注释：经纬度到屏幕坐标（逻辑点，原点为视口左上角）
func (c CameraState) Project(lat, lon float64) (x, y float64) {
	w := c.WorldSize()
	center := mercator.Project(c.Lat, c.Lon)
	p := mercator.Project(lat, lon)
	return (p[0]-center[0])*w + c.WidthPts/2, (p[1]-center[1])*w + c.HeightPts/2
}

// Unproject：屏幕坐标（逻辑点）反算经纬度
func (c CameraState) Unproject(x, y float64) (lat, lon float64) {
	w := c.WorldSize()
	center := mercator.Project(c.Lat, c.Lon)
	return mercator.Unproject(orb.Point{
		center[0] + (x-c.WidthPts/2)/w,
		center[1] + (y-c.HeightPts/2)/w,
	})
}

// 文档注释：每逻辑点对应的经度跨度
// 背景：点击处理方可将触控半径（点）乘以该值换算成 HitTest 的度容差。
func (c CameraState) DegreesPerPoint() float64 {
	return 360 / c.WorldSize()
}

// Visible：视口四角反算得到的经纬度范围（经度为 X）
func (c CameraState) Visible() orb.Bound {
	n, w := c.Unproject(0, 0)
	s, east := c.Unproject(c.WidthPts, c.HeightPts)
	return orb.Bound{Min: orb.Point{w, s}, Max: orb.Point{east, n}}
}
