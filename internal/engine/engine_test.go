package engine

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"

	"spatial-layer/internal/mercator"
	"spatial-layer/internal/pointstore"

	"github.com/cheekybits/is"
	"github.com/paulmach/orb/maptile"
)

func nycBuffer(n int, seed int64) []float32 {
	r := rand.New(rand.NewSource(seed))
	buf := make([]float32, 0, n*4)
	for i := 0; i < n; i++ {
		lat := 40.5 + r.Float64()*0.45
		lon := -74.3 + r.Float64()*0.6
		buf = append(buf, float32(lat), float32(lon), float32(i), float32(i%4))
	}
	return buf
}

func TestTwoPointScenario(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.NoErr(e.Load([]float32{40.000, -73.000, 1, 1, 40.001, -73.001, 2, 2}))

	b, ok := e.Bounds()
	is.True(ok)
	lat1, lon1 := float64(float32(40.000)), float64(float32(-73.000))
	lat2, lon2 := float64(float32(40.001)), float64(float32(-73.001))
	is.Equal(b.MinLat, lat1)
	is.Equal(b.MaxLat, lat2)
	is.Equal(b.MinLon, lon2)
	is.Equal(b.MaxLon, lon1)
	is.Equal(b.CenterLat, (lat1+lat2)/2)
	is.Equal(b.CenterLon, (lon1+lon2)/2)
	is.True(math.Abs(b.CenterLat-40.0005) < 1e-5)
	is.True(math.Abs(b.CenterLon+73.0005) < 1e-5)
	is.True(b.SuggestedZoom >= 16 && b.SuggestedZoom <= 19)

	// 找到同时包含两点的最细瓦片
	z := b.SuggestedZoom
	var tile []TilePoint
	for ; z >= 0; z-- {
		t1 := mercator.TileAt(mercator.Project(lat1, lon1), maptile.Zoom(z))
		t2 := mercator.TileAt(mercator.Project(lat2, lon2), maptile.Zoom(z))
		if t1 == t2 {
			tile = e.TileQuery(int(t1.X), int(t1.Y), z)
			break
		}
	}
	is.Equal(len(tile), 2)
	var p1, p2 TilePoint
	for _, p := range tile {
		if p.ID == 1 {
			p1 = p
		} else {
			p2 = p
		}
	}
	is.Equal(p1.Type, uint16(1))
	is.Equal(p2.Type, uint16(2))
	// 点 2 位于点 1 西北
	is.True(p2.X < p1.X)
	is.True(p2.Y < p1.Y)
	for _, p := range tile {
		is.True(p.X >= 0 && p.X < 1)
		is.True(p.Y >= 0 && p.Y < 1)
	}
}

func TestBoundsExact(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	buf := nycBuffer(2000, 11)
	is.NoErr(e.Load(buf))
	b, ok := e.Bounds()
	is.True(ok)
	minLat, maxLat, minLon, maxLon := 90.0, -90.0, 180.0, -180.0
	for i := 0; i < len(buf); i += 4 {
		minLat = math.Min(minLat, float64(buf[i]))
		maxLat = math.Max(maxLat, float64(buf[i]))
		minLon = math.Min(minLon, float64(buf[i+1]))
		maxLon = math.Max(maxLon, float64(buf[i+1]))
	}
	is.Equal(b.MinLat, minLat)
	is.Equal(b.MaxLat, maxLat)
	is.Equal(b.MinLon, minLon)
	is.Equal(b.MaxLon, maxLon)
}

// assertTileUnion：覆盖包围盒的全部瓦片结果合并后恰好重建点集
func assertTileUnion(t *testing.T, e *Engine, n int, zooms ...int) {
	is := is.New(t)
	b, ok := e.Bounds()
	is.True(ok)
	for _, z := range zooms {
		nw := mercator.TileAt(mercator.Project(b.MaxLat, b.MinLon), maptile.Zoom(z))
		se := mercator.TileAt(mercator.Project(b.MinLat, b.MaxLon), maptile.Zoom(z))
		seen := make(map[uint32]int)
		for y := nw.Y; y <= se.Y; y++ {
			for x := nw.X; x <= se.X; x++ {
				for _, p := range e.TileQuery(int(x), int(y), z) {
					seen[p.ID]++
					is.True(p.X >= 0 && p.X < 1)
					is.True(p.Y >= 0 && p.Y < 1)
				}
			}
		}
		is.Equal(len(seen), n)
		for _, c := range seen {
			is.Equal(c, 1)
		}
	}
}

func TestTileUnionReconstructsPoints(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	buf := nycBuffer(5000, 12)
	// 经度 -73.828125 恰为 z=9 的瓦片左边界
	buf = append(buf, 40.7, -73.828125, 99999, 3)
	is.NoErr(e.Load(buf))
	assertTileUnion(t, e, len(buf)/4, 0, 3, 9, 13, 17)
}

func TestTileUnionAboveCanonicalZoom(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	r := rand.New(rand.NewSource(21))
	var buf []float32
	for i := 0; i < 500; i++ {
		buf = append(buf, float32(40.7484+r.Float64()*0.002), float32(-73.9857+r.Float64()*0.002), float32(i), 1)
	}
	is.NoErr(e.Load(buf))
	assertTileUnion(t, e, 500, 20, 21, 22, 24)
}

func TestBoundaryPointHalfOpen(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	// 经度 0、纬度 0 恰在 z=1 四个瓦片的公共角
	is.NoErr(e.Load([]float32{0, 0, 1, 0}))
	is.Equal(len(e.TileQuery(1, 1, 1)), 1)
	is.Equal(len(e.TileQuery(0, 0, 1)), 0)
	is.Equal(len(e.TileQuery(0, 1, 1)), 0)
	is.Equal(len(e.TileQuery(1, 0, 1)), 0)
	p := e.TileQuery(1, 1, 1)[0]
	is.Equal(p.X, float32(0))
	is.Equal(p.Y, float32(0))
}

func TestHitTest(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	buf := nycBuffer(3000, 13)
	is.NoErr(e.Load(buf))

	for i := 0; i < len(buf); i += 4 * 97 {
		lat, lon := float64(buf[i]), float64(buf[i+1])
		h, ok := e.HitTest(lat, lon, 0)
		is.True(ok)
		is.Equal(h.ID, uint32(buf[i+2]))
		is.Equal(h.Distance, 0.0)
	}

	// 与暴力最近邻比较
	r := rand.New(rand.NewSource(5))
	for k := 0; k < 200; k++ {
		lat := 40.5 + r.Float64()*0.45
		lon := -74.3 + r.Float64()*0.6
		tol := r.Float64() * 0.01
		bestD, bestID, found := math.Inf(1), uint32(0), false
		for i := 0; i < len(buf); i += 4 {
			d := math.Hypot(float64(buf[i+1])-lon, float64(buf[i])-lat)
			id := uint32(buf[i+2])
			if d <= tol && (d < bestD || (d == bestD && id < bestID)) {
				bestD, bestID, found = d, id, true
			}
		}
		h, ok := e.HitTest(lat, lon, tol)
		is.Equal(ok, found)
		if found {
			is.Equal(h.ID, bestID)
		}
	}
}

func TestHitTestToleranceBelowNearest(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.NoErr(e.Load([]float32{10, 10, 1, 0}))
	_, ok := e.HitTest(10, 10.5, 0.49)
	is.False(ok)
	h, ok := e.HitTest(10, 10.5, 0.5)
	is.True(ok)
	is.Equal(h.ID, uint32(1))
	_, ok = e.HitTest(10, 10, -1)
	is.False(ok)
}

func TestHitTestTieBreaksOnID(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.NoErr(e.Load([]float32{0, 1, 7, 0, 0, -1, 3, 0}))
	h, ok := e.HitTest(0, 0, 1)
	is.True(ok)
	is.Equal(h.ID, uint32(3))
}

func TestInvalidLoadKeepsPrior(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.NoErr(e.Load([]float32{40, -73, 1, 1}))
	gen := e.Generation()
	mem := e.MemoryUsage()
	b0, _ := e.Bounds()

	err := e.LoadBytes(make([]byte, 20))
	is.True(errors.Is(err, pointstore.ErrInvalidFormat))
	err = e.Load([]float32{95, 0, 2, 0})
	is.True(errors.Is(err, pointstore.ErrOutOfRange))

	is.Equal(e.Generation(), gen)
	is.Equal(e.MemoryUsage(), mem)
	b1, ok := e.Bounds()
	is.True(ok)
	is.Equal(b1, b0)
	h, ok := e.HitTest(40, -73, 0)
	is.True(ok)
	is.Equal(h.ID, uint32(1))
}

func TestEmptyLoad(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.NoErr(e.Load([]float32{40, -73, 1, 1}))
	is.NoErr(e.Load(nil))
	_, ok := e.Bounds()
	is.False(ok)
	is.Equal(len(e.TileQuery(0, 0, 0)), 0)
	_, ok = e.HitTest(40, -73, 1)
	is.False(ok)
	is.Equal(e.Len(), 0)
}

func TestMemoryUsageTracksLoad(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.NoErr(e.Load(nycBuffer(100, 1)))
	small := e.MemoryUsage()
	is.NoErr(e.Load(nycBuffer(10000, 1)))
	is.True(e.MemoryUsage() > small)
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.NoErr(e.Load([]float32{40, -73, 1, 1}))
	// 模拟一次更晚开始、已发布的加载
	cur := *e.snap.Load()
	cur.ticket = 1 << 40
	e.snap.Store(&cur)

	is.NoErr(e.Load([]float32{10, 10, 2, 0}))
	_, ok := e.HitTest(10, 10, 0)
	is.False(ok)
	h, ok := e.HitTest(40, -73, 0)
	is.True(ok)
	is.Equal(h.ID, uint32(1))
}

func TestConcurrentLoadsAndReads(t *testing.T) {
	e := New(DefaultOptions())
	bufs := [][]float32{nycBuffer(500, 1), nycBuffer(800, 2), nycBuffer(0, 3)}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = e.Load(bufs[i%len(bufs)])
		}(i)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				n := len(e.TileQuery(0, 0, 0))
				if n != 0 && n != 500 && n != 800 {
					t.Errorf("partial store observed: %d points", n)
				}
				e.HitTest(40.7, -74, 0.01)
				e.CameraUpdate(40.7, -74, 12, 390, 844, 3)
				e.Bounds()
			}
		}()
	}
	wg.Wait()
	g := e.Generation()
	if g < 1 || g > 8 {
		t.Fatalf("generation %d outside [1, 8]", g)
	}
}

func TestCamera(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	_, ok := e.Camera()
	is.False(ok)

	e.CameraUpdate(40.7, -74, 12, 390, 844, 3)
	e.CameraUpdate(0, 0, 3, 0, 844, 3)
	e.CameraUpdate(0, 0, 3, 390, -1, 3)
	e.CameraUpdate(0, 0, 3, math.NaN(), 10, 3)
	c, ok := e.Camera()
	is.True(ok)
	is.Equal(c, CameraState{Lat: 40.7, Lon: -74, Zoom: 12, WidthPts: 390, HeightPts: 844, Density: 3})

	x, y := c.Project(40.7, -74)
	is.True(math.Abs(x-195) < 1e-6)
	is.True(math.Abs(y-422) < 1e-6)
	lat, lon := c.Unproject(x+10, y-20)
	x2, y2 := c.Project(lat, lon)
	is.True(math.Abs(x2-x-10) < 1e-6)
	is.True(math.Abs(y2-y+20) < 1e-6)
	is.True(math.Abs(c.DegreesPerPoint()-360.0/(256*4096)) < 1e-15)

	v := c.Visible()
	is.True(v.Min.Lon() < -74 && v.Max.Lon() > -74)
	is.True(v.Min.Lat() < 40.7 && v.Max.Lat() > 40.7)
}

func TestStyles(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.Equal(len(e.Styles()), 0)
	in := map[uint16]uint32{1: 0xFF00FFFF, 2: 0xFFFF0000}
	e.SetStyles(in)
	in[3] = 1
	is.Equal(len(e.Styles()), 2)
	is.Equal(e.Color(1, 0), uint32(0xFF00FFFF))
	is.Equal(e.Color(9, 7), uint32(7))
	e.SetStyles(map[uint16]uint32{5: 5})
	is.Equal(e.Styles(), map[uint16]uint32{5: 5})
}

func TestSuggestZoomClamps(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.NoErr(e.Load([]float32{10, 10, 1, 0}))
	b, _ := e.Bounds()
	is.Equal(b.SuggestedZoom, 20)
	is.NoErr(e.Load([]float32{-80, -179, 1, 0, 80, 179, 2, 0}))
	b, _ = e.Bounds()
	is.Equal(b.SuggestedZoom, 0)
}

func TestVersionIdentifiesContent(t *testing.T) {
	is := is.New(t)
	a, b := New(DefaultOptions()), New(DefaultOptions())
	is.Equal(a.Version(), b.Version())

	is.NoErr(a.Load([]float32{40, -73, 1, 0}))
	is.NoErr(b.Load([]float32{40, -73, 1, 0, 41, -74, 2, 0}))
	// 代数相同但数据不同
	is.Equal(a.Generation(), b.Generation())
	is.NotEqual(a.Version(), b.Version())

	// 另一实例加载相同数据得到相同版本
	c := New(Options{CanonicalZoom: 14})
	is.NoErr(c.Load([]float32{40, -73, 1, 0, 41, -74, 2, 0}))
	is.Equal(c.Version(), b.Version())
}

func TestViewPinsSnapshot(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	is.NoErr(e.Load([]float32{40, -73, 1, 0}))
	v := e.View()
	before := v.Version()
	is.NoErr(e.Load([]float32{40, -73, 1, 0, 10, 10, 2, 0}))
	is.Equal(v.Version(), before)
	is.Equal(len(v.TileQuery(0, 0, 0)), 1)
	is.Equal(len(e.TileQuery(0, 0, 0)), 2)
	is.NotEqual(e.View().Version(), before)
	is.Equal(len(View{}.TileQuery(0, 0, 0)), 0)
}

func TestLoadBytesStatusReportsSupersede(t *testing.T) {
	is := is.New(t)
	e := New(DefaultOptions())
	var buf bytes.Buffer
	is.NoErr(pointstore.Encode(&buf, []pointstore.Point{{ID: 1, Lat: 40, Lon: -73}}))
	v, published, err := e.LoadBytesStatus(buf.Bytes())
	is.NoErr(err)
	is.True(published)
	is.Equal(v.Len(), 1)
	is.Equal(v.Generation(), uint64(1))

	cur := *e.snap.Load()
	cur.ticket = 1 << 40
	e.snap.Store(&cur)

	buf.Reset()
	is.NoErr(pointstore.Encode(&buf, []pointstore.Point{{ID: 1, Lat: 10, Lon: 10}, {ID: 2, Lat: 11, Lon: 11}}))
	v, published, err = e.LoadBytesStatus(buf.Bytes())
	is.NoErr(err)
	is.False(published)
	is.Equal(v.Len(), 1)
	is.Equal(v.Version(), cur.version)

	_, _, err = e.LoadBytesStatus(make([]byte, 7))
	is.True(errors.Is(err, pointstore.ErrInvalidFormat))
}
