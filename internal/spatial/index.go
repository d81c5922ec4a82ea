// 包 spatial：按规范缩放级别分桶的瓦片空间索引
package spatial

import (
	"sort"

	"spatial-layer/internal/mercator"
	"spatial-layer/internal/pointstore"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// DefaultZoom：默认规范级别，对应移动端地图的最大缩放
const DefaultZoom maptile.Zoom = 20

// 文档注释：瓦片分桶索引
// 背景：每个点投影到规范级别 C 的瓦片 (floor(x), floor(y))，以 Z 序键排序后压缩为桶；
// 任意 z<=C 的瓦片在键空间中是一段连续区间，二分即可定位，无需扫描全部点。
// 约束：构建后只读；members 按桶分组保存点在 Store 中的下标，每个点恰好属于一个桶。
type Index struct {
	zoom    maptile.Zoom
	world   []orb.Point // 与 Store 同序的世界坐标
	keys    []uint64    // 非空桶键，升序
	starts  []uint32    // len(keys)+1，members 中每个桶的起点
	members []uint32
}

// 文档注释：构建索引
// 背景：O(n) 投影 + 基数排序；zoom 超出范围时回退为 DefaultZoom。
func Build(s *pointstore.Store, zoom maptile.Zoom) *Index {
	if zoom > mercator.MaxZoom {
		zoom = DefaultZoom
	}
	n := s.Len()
	ix := &Index{zoom: zoom, world: make([]orb.Point, n)}
	keys := make([]uint64, n)
	idx := make([]uint32, n)
	for i, p := range s.Points() {
		w := mercator.Project(p.Lat, p.Lon)
		ix.world[i] = w
		t := mercator.TileAt(w, zoom)
		keys[i] = zkey(t.X, t.Y)
		idx[i] = uint32(i)
	}
	radixSort(keys, idx, 2*uint(zoom))
	for i := 0; i < n; i++ {
		if i == 0 || keys[i] != keys[i-1] {
			ix.keys = append(ix.keys, keys[i])
			ix.starts = append(ix.starts, uint32(i))
		}
	}
	ix.starts = append(ix.starts, uint32(n))
	ix.members = idx
	return ix
}

// Zoom：规范级别
func (ix *Index) Zoom() maptile.Zoom { return ix.zoom }

// World：第 i 个点的世界坐标
func (ix *Index) World(i int) orb.Point { return ix.world[i] }

// Buckets：非空桶数量
func (ix *Index) Buckets() int { return len(ix.keys) }

// Bytes：索引自身占用的字节数（不含点记录）
func (ix *Index) Bytes() uint64 {
	return uint64(cap(ix.world))*16 + uint64(cap(ix.keys))*8 +
		uint64(cap(ix.starts))*4 + uint64(cap(ix.members))*4
}

// 文档注释：遍历瓦片内的点
// 背景：z<=C 时聚合键区间 [lo, hi) 内的全部桶，区间内点必然属于该瓦片；
// z>C 时取规范级父桶，按 z 级重新投影并精确过滤。
// 约束：每个点至多回调一次；瓦片编号越界时不回调。
func (ix *Index) Tile(t maptile.Tile, fn func(i int)) {
	if len(ix.keys) == 0 || !mercator.ValidTile(int(t.X), int(t.Y), int(t.Z)) {
		return
	}
	if t.Z <= ix.zoom {
		lo, hi := ix.span(t)
		for _, m := range ix.members[ix.starts[lo]:ix.starts[hi]] {
			fn(int(m))
		}
		return
	}
	shift := t.Z - ix.zoom
	b, ok := ix.bucket(zkey(t.X>>shift, t.Y>>shift))
	if !ok {
		return
	}
	for _, m := range ix.members[ix.starts[b]:ix.starts[b+1]] {
		if mercator.TileAt(ix.world[m], t.Z) == t {
			fn(int(m))
		}
	}
}

// span：z<=C 的瓦片覆盖的桶下标区间 [lo, hi)
func (ix *Index) span(t maptile.Tile) (int, int) {
	min, max := t.Range(ix.zoom)
	lo := zkey(min.X, min.Y)
	hi := zkey(max.X, max.Y) + 1
	b0 := sort.Search(len(ix.keys), func(i int) bool { return ix.keys[i] >= lo })
	b1 := b0 + sort.Search(len(ix.keys)-b0, func(i int) bool { return ix.keys[b0+i] >= hi })
	return b0, b1
}

func (ix *Index) bucket(k uint64) (int, bool) {
	i := sort.Search(len(ix.keys), func(i int) bool { return ix.keys[i] >= k })
	if i < len(ix.keys) && ix.keys[i] == k {
		return i, true
	}
	return 0, false
}

// maxCells：区域查询时单级最多枚举的瓦片数（每轴 4 个）
const maxCells = 16

// 文档注释：遍历与世界坐标矩形相交的桶中的点
// 背景：用于命中测试；先在不高于 C 的级别中选出覆盖矩形且瓦片数不超过 maxCells 的最细级别，
// 对每个瓦片取连续桶区间，再按规范级桶坐标剔除不与矩形相交的桶。
// 约束：回调集合是矩形内点的超集（整桶粒度），调用方需自行做精确距离判定。
func (ix *Index) Rect(r orb.Bound, fn func(i int)) {
	if len(ix.keys) == 0 {
		return
	}
	c0, c1 := mercator.TileAt(r.Min, ix.zoom), mercator.TileAt(r.Max, ix.zoom)
	z := ix.zoom
	for {
		shift := ix.zoom - z
		w := uint64(c1.X>>shift-c0.X>>shift) + 1
		h := uint64(c1.Y>>shift-c0.Y>>shift) + 1
		if w*h <= maxCells || z == 0 {
			break
		}
		z--
	}
	shift := ix.zoom - z
	for ty := c0.Y >> shift; ty <= c1.Y>>shift; ty++ {
		for tx := c0.X >> shift; tx <= c1.X>>shift; tx++ {
			lo, hi := ix.span(maptile.New(tx, ty, z))
			for b := lo; b < hi; b++ {
				bx, by := unzkey(ix.keys[b])
				if bx < c0.X || bx > c1.X || by < c0.Y || by > c1.Y {
					continue
				}
				for _, m := range ix.members[ix.starts[b]:ix.starts[b+1]] {
					fn(int(m))
				}
			}
		}
	}
}
