package source

import (
	"math/rand"

	"spatial-layer/internal/pointstore"
)

type hotspot struct {
	lon, lat, weight float64
}

// 曼哈顿及周边的上车热点，权重之和为 1
var nycHotspots = []hotspot{
	{-73.9857, 40.7484, 0.30}, // Times Square
	{-73.9712, 40.7831, 0.15}, // Upper East Side
	{-74.0060, 40.7128, 0.20}, // Financial District
	{-73.9851, 40.7589, 0.15}, // Midtown
	{-73.9632, 40.7794, 0.10}, // Central Park
	{-73.9442, 40.6782, 0.05}, // Brooklyn
	{-73.8700, 40.7769, 0.05}, // LGA
}

// spread：热点周围的高斯标准差（度）
const spread = 0.015

// 文档注释：生成合成出租车点
// 背景：真实数据不可用时的替代；按热点权重选点并加高斯扰动，落在过滤框外的样本丢弃。
// 约束：同一 seed 结果确定；返回条数不超过 n。
func Synthetic(n int, seed int64, opts Options) []pointstore.Point {
	rng := rand.New(rand.NewSource(seed))
	opts.Limit = n
	c := &collector{opts: opts}
	for i := 0; i < n && !c.full(); i++ {
		r := rng.Float64()
		h := nycHotspots[0]
		cum := 0.0
		for _, s := range nycHotspots {
			cum += s.weight
			if r <= cum {
				h = s
				break
			}
		}
		c.add(h.lat+rng.NormFloat64()*spread, h.lon+rng.NormFloat64()*spread)
	}
	return c.pts
}
