package engine

import (
	"os"
	"strconv"

	"spatial-layer/internal/mercator"
	"spatial-layer/internal/spatial"
)

// 文档注释：引擎参数
// 背景：规范级别决定桶粒度；MaxZoom 与 ReferenceViewport 仅影响建议缩放的计算。
type Options struct {
	CanonicalZoom     int
	MaxZoom           int
	ReferenceViewport float64 // 建议缩放时的参考视口边长（逻辑像素）
}

// DefaultOptions：canonical=20，maxZoom=20，参考视口为一个标准瓦片
func DefaultOptions() Options {
	return Options{
		CanonicalZoom:     int(spatial.DefaultZoom),
		MaxZoom:           int(spatial.DefaultZoom),
		ReferenceViewport: mercator.TileSize,
	}
}

// 文档注释：从环境变量读取引擎参数
// 约束：SPATIAL_CANONICAL_ZOOM / SPATIAL_MAX_ZOOM 取 [0, 30]；SPATIAL_REFERENCE_VIEWPORT 需为正数；解析失败回退默认值。
func OptionsFromEnv() Options {
	o := DefaultOptions()
	if s := os.Getenv("SPATIAL_CANONICAL_ZOOM"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n >= 0 && n <= mercator.MaxZoom {
			o.CanonicalZoom = n
		}
	}
	if s := os.Getenv("SPATIAL_MAX_ZOOM"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n >= 0 && n <= mercator.MaxZoom {
			o.MaxZoom = n
		}
	}
	if s := os.Getenv("SPATIAL_REFERENCE_VIEWPORT"); s != "" {
		if f, e := strconv.ParseFloat(s, 64); e == nil && f > 0 {
			o.ReferenceViewport = f
		}
	}
	return o
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.CanonicalZoom < 0 || o.CanonicalZoom > mercator.MaxZoom {
		o.CanonicalZoom = d.CanonicalZoom
	}
	if o.MaxZoom < 0 || o.MaxZoom > mercator.MaxZoom {
		o.MaxZoom = d.MaxZoom
	}
	if !(o.ReferenceViewport > 0) {
		o.ReferenceViewport = d.ReferenceViewport
	}
	return o
}
