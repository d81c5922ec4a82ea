// 包 mercator：球面 Web-Mercator 投影与瓦片坐标换算，供索引、瓦片查询、命中测试与相机共用
package mercator

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	// MaxLatitude：投影前的纬度钳制值，避开极点奇异
	MaxLatitude = 85.05113
	// TileSize：标准瓦片边长（逻辑像素）
	TileSize = 256
	// MaxZoom：可寻址的最大缩放级别，保证 2*z 位可装入 uint64 的 Z 序键
	MaxZoom = 30
)

// 世界坐标上界：最大的小于 1 的 float64，保证 floor(x*2^z) 不越过 2^z-1
var worldMax = math.Nextafter(1, 0)

// 文档注释：经纬度投影到世界分数坐标 [0,1)×[0,1)
// 背景：x 向东、y 向南递增，与 XYZ 瓦片编号一致；乘以 2^z 即得 z 级瓦片空间坐标。
// 约束：纬度先钳制到 ±MaxLatitude；经度 180 钳制到世界右边界内，按半开区间归属最后一列。
func Project(lat, lon float64) orb.Point {
	lat = ClampLatitude(lat)
	phi := lat * math.Pi / 180
	x := (lon + 180) / 360
	y := (1 - math.Log(math.Tan(phi)+1/math.Cos(phi))/math.Pi) / 2
	return orb.Point{clampWorld(x), clampWorld(y)}
}

// Unproject：世界分数坐标反投影为经纬度
func Unproject(p orb.Point) (lat, lon float64) {
	lon = p[0]*360 - 180
	lat = math.Atan(math.Sinh(math.Pi*(1-2*p[1]))) * 180 / math.Pi
	return lat, lon
}

// ClampLatitude：将纬度钳制到 Mercator 可投影区间
func ClampLatitude(lat float64) float64 {
	if lat > MaxLatitude {
		return MaxLatitude
	}
	if lat < -MaxLatitude {
		return -MaxLatitude
	}
	return lat
}

func clampWorld(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > worldMax {
		return worldMax
	}
	return v
}

// Scale：z 级下世界的瓦片数（每轴）
func Scale(z maptile.Zoom) float64 {
	return float64(uint64(1) << z)
}

// TileSpace：世界坐标换算到 z 级瓦片空间（整数部分即瓦片编号）
// 约束：乘以 2 的幂在 float64 中无舍入，因此不同级别的 floor 结果与右移一致
func TileSpace(p orb.Point, z maptile.Zoom) (float64, float64) {
	s := Scale(z)
	return p[0] * s, p[1] * s
}

// TileAt：世界坐标在 z 级所属瓦片（半开区间 [x, x+1)）
func TileAt(p orb.Point, z maptile.Zoom) maptile.Tile {
	tx, ty := TileSpace(p, z)
	return maptile.New(uint32(tx), uint32(ty), z)
}

// InTile：世界坐标相对瓦片原点的归一化位置，落在 [0,1)×[0,1)
func InTile(p orb.Point, t maptile.Tile) (float32, float32) {
	tx, ty := TileSpace(p, t.Z)
	return unit32(tx - float64(t.X)), unit32(ty - float64(t.Y))
}

// float32 舍入可能把 0.99999999 进位为 1，需压回半开区间
func unit32(v float64) float32 {
	f := float32(v)
	if f >= 1 {
		return math.Nextafter32(1, 0)
	}
	if f < 0 {
		return 0
	}
	return f
}

// ValidTile：瓦片编号是否在 z 级网格内
func ValidTile(x, y, z int) bool {
	if z < 0 || z > MaxZoom || x < 0 || y < 0 {
		return false
	}
	n := 1 << uint(z)
	return x < n && y < n
}
