// 包 source：点数据来源（CSV、Postgres、合成数据），统一产出 pointstore.Point 切片
package source

import (
	"fmt"
	"strconv"
	"strings"

	"spatial-layer/internal/pointstore"

	"github.com/paulmach/orb"
)

// NYCBound：纽约市范围（经度为 X），出租车数据的默认过滤框
var NYCBound = orb.Bound{Min: orb.Point{-74.3, 40.5}, Max: orb.Point{-73.7, 40.95}}

// 文档注释：读取参数
// 背景：过滤框为零值时不过滤；Limit<=0 表示不限制条数；id 从 FirstID 起顺序分配。
type Options struct {
	Bound   orb.Bound
	Limit   int
	Type    uint16
	FirstID uint32
}

// DefaultOptions：纽约范围、类型 1、不限条数
func DefaultOptions() Options {
	return Options{Bound: NYCBound, Type: 1}
}

// Stats：一次读取的行数统计
type Stats struct {
	Rows     int
	Accepted int
	Skipped  int
}

// 收集器：按过滤框与条数上限接收坐标，顺序分配 id
type collector struct {
	opts  Options
	pts   []pointstore.Point
	stats Stats
}

func (c *collector) full() bool { return c.opts.Limit > 0 && len(c.pts) >= c.opts.Limit }

func (c *collector) add(lat, lon float64) {
	c.stats.Rows++
	// 坐标为 0 的行在出租车数据中表示缺失
	if lat == 0 || lon == 0 || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		c.stats.Skipped++
		return
	}
	if !c.opts.Bound.IsZero() && !c.opts.Bound.Contains(orb.Point{lon, lat}) {
		c.stats.Skipped++
		return
	}
	c.pts = append(c.pts, pointstore.Point{
		ID:   c.opts.FirstID + uint32(len(c.pts)),
		Type: c.opts.Type,
		Lat:  lat,
		Lon:  lon,
	})
	c.stats.Accepted++
}

// 文档注释：解析 "minLon,minLat,maxLon,maxLat" 形式的过滤框
// 约束：空串返回零值（不过滤）；"nyc" 返回 NYCBound。
func ParseBound(s string) (orb.Bound, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "":
		return orb.Bound{}, nil
	case "nyc":
		return NYCBound, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q: want minLon,minLat,maxLon,maxLat", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("bbox %q: min greater than max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
