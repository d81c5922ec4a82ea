// 包 api：HTTP 适配层，只负责参数翻译并转调引擎；瓦片响应经两级缓存
package api

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"strconv"

	"spatial-layer/internal/engine"
	"spatial-layer/internal/logger"
	"spatial-layer/internal/mercator"
	"spatial-layer/internal/pointstore"
	"spatial-layer/internal/tilecache"
)

// 默认加载体积上限：约 1600 万个点
const defaultLoadMaxBytes = 256 << 20

// 文档注释：构建并返回 API 路由
// 背景：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀；tc 可为 nil（不缓存瓦片）。
func BuildRoutes(l engine.Layer, tc *tilecache.Cache) *http.ServeMux {
	h := &handlers{layer: l, tiles: tc, maxLoad: loadMaxBytesFromEnv()}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /load", h.load)
	mux.HandleFunc("GET /memory", h.memory)
	mux.HandleFunc("GET /tiles/{z}/{x}/{y}", h.tile)
	mux.HandleFunc("GET /hit", h.hit)
	mux.HandleFunc("POST /camera", h.setCamera)
	mux.HandleFunc("GET /camera", h.getCamera)
	mux.HandleFunc("GET /bounds", h.bounds)
	mux.HandleFunc("PUT /styles", h.setStyles)
	mux.HandleFunc("GET /styles", h.getStyles)
	return mux
}

func loadMaxBytesFromEnv() int64 {
	if s := os.Getenv("LOAD_MAX_BYTES"); s != "" {
		if n, e := strconv.ParseInt(s, 10, 64); e == nil && n > 0 {
			return n
		}
	}
	return defaultLoadMaxBytes
}

type handlers struct {
	layer   engine.Layer
	tiles   *tilecache.Cache
	maxLoad int64
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// 文档注释：加载点数据（请求体为小端 float32 记录流）
// 约束：格式或越界错误返回 400，已发布数据不变；超过 LOAD_MAX_BYTES 返回 413。
func (h *handlers) load(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxLoad))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "read body failed")
		return
	}
	v, published, err := h.layer.LoadBytesStatus(body)
	if err != nil {
		switch {
		case errors.Is(err, pointstore.ErrInvalidFormat),
			errors.Is(err, pointstore.ErrOutOfRange),
			errors.Is(err, pointstore.ErrDuplicateID):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.L().Error("load_error", "err", err)
			writeError(w, http.StatusInternalServerError, "load failed")
		}
		return
	}
	// published=false：本次数据已被更晚开始的加载取代，以下字段描述胜出的数据
	writeJSON(w, http.StatusOK, map[string]any{
		"published":  published,
		"points":     v.Len(),
		"generation": v.Generation(),
		"version":    v.Version(),
		"bytes":      v.MemoryUsage(),
	})
}

func (h *handlers) memory(w http.ResponseWriter, r *http.Request) {
	v := h.layer.View()
	writeJSON(w, http.StatusOK, map[string]any{
		"bytes":      v.MemoryUsage(),
		"generation": v.Generation(),
		"version":    v.Version(),
	})
}

// 文档注释：瓦片点查询
// 背景：format=bin 时输出 [x, y, type] 三元组的小端 float32 流，与原生瓦片提供者的数组布局一致；默认 JSON。
// 约束：坐标非整数返回 400；越界瓦片与空瓦片均返回空结果，越界瓦片不进缓存。
// 缓存键取自同一视图的内容指纹，查询也在该视图上执行。
func (h *handlers) tile(w http.ResponseWriter, r *http.Request) {
	z, ez := strconv.Atoi(r.PathValue("z"))
	x, ex := strconv.Atoi(r.PathValue("x"))
	y, ey := strconv.Atoi(r.PathValue("y"))
	if ez != nil || ex != nil || ey != nil {
		writeError(w, http.StatusBadRequest, "tile coordinates must be integers")
		return
	}
	format := "json"
	ctype := "application/json; charset=utf-8"
	if r.URL.Query().Get("format") == "bin" {
		format = "bin"
		ctype = "application/octet-stream"
	}
	encode := encodeTileJSON
	if format == "bin" {
		encode = encodeTileBinary
	}
	var body []byte
	if !mercator.ValidTile(x, y, z) {
		body = encode(nil)
	} else {
		ctx := r.Context()
		v := h.layer.View()
		key := tilecache.Key(v.Version(), z, x, y, format)
		var ok bool
		if body, ok = h.tiles.Get(ctx, key); !ok {
			body = encode(v.TileQuery(x, y, z))
			h.tiles.Set(ctx, key, body)
		}
	}
	w.Header().Set("content-type", ctype)
	w.Header().Set("cache-control", "no-store")
	_, _ = w.Write(body)
}

func encodeTileBinary(pts []engine.TilePoint) []byte {
	out := make([]byte, 0, len(pts)*12)
	var b [4]byte
	for _, p := range pts {
		for _, f := range [3]float32{p.X, p.Y, float32(p.Type)} {
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
			out = append(out, b[:]...)
		}
	}
	return out
}

type tileJSON struct {
	Points [][3]float32 `json:"points"`
	IDs    []uint32     `json:"ids"`
}

func encodeTileJSON(pts []engine.TilePoint) []byte {
	res := tileJSON{Points: make([][3]float32, 0, len(pts)), IDs: make([]uint32, 0, len(pts))}
	for _, p := range pts {
		res.Points = append(res.Points, [3]float32{p.X, p.Y, float32(p.Type)})
		res.IDs = append(res.IDs, p.ID)
	}
	b, _ := json.Marshal(res)
	return append(b, '\n')
}

type hitJSON struct {
	ID       uint32  `json:"id"`
	Type     uint16  `json:"type"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Distance float64 `json:"distance"`
}

// hit：命中测试；未命中返回 JSON null
func (h *handlers) hit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, e1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, e2 := strconv.ParseFloat(q.Get("lon"), 64)
	tol, e3 := strconv.ParseFloat(q.Get("tol"), 64)
	if e1 != nil || e2 != nil || e3 != nil {
		writeError(w, http.StatusBadRequest, "lat, lon and tol are required numbers")
		return
	}
	p, ok := h.layer.HitTest(lat, lon, tol)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, hitJSON{ID: p.ID, Type: p.Type, Lat: p.Lat, Lon: p.Lon, Distance: p.Distance})
}

type cameraJSON struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Zoom    float64 `json:"zoom"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Density float64 `json:"density"`
}

// setCamera：写入相机状态；非正宽高由引擎静默忽略，此处仍返回 204
func (h *handlers) setCamera(w http.ResponseWriter, r *http.Request) {
	var c cameraJSON
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid camera json")
		return
	}
	h.layer.CameraUpdate(c.Lat, c.Lon, c.Zoom, c.Width, c.Height, c.Density)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getCamera(w http.ResponseWriter, r *http.Request) {
	c, ok := h.layer.Camera()
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, cameraJSON{Lat: c.Lat, Lon: c.Lon, Zoom: c.Zoom, Width: c.WidthPts, Height: c.HeightPts, Density: c.Density})
}

type boundsJSON struct {
	MinLat        float64 `json:"minLat"`
	MaxLat        float64 `json:"maxLat"`
	MinLon        float64 `json:"minLon"`
	MaxLon        float64 `json:"maxLon"`
	CenterLat     float64 `json:"centerLat"`
	CenterLon     float64 `json:"centerLon"`
	SuggestedZoom int     `json:"suggestedZoom"`
}

func (h *handlers) bounds(w http.ResponseWriter, r *http.Request) {
	b, ok := h.layer.Bounds()
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, boundsJSON(b))
}

// 文档注释：设置样式
// 背景：请求体沿用前端约定的 [[type, color], ...] 数组；整体替换。
func (h *handlers) setStyles(w http.ResponseWriter, r *http.Request) {
	var pairs [][2]int64
	if err := json.NewDecoder(r.Body).Decode(&pairs); err != nil {
		writeError(w, http.StatusBadRequest, "styles must be [[type, color], ...]")
		return
	}
	m := make(map[uint16]uint32, len(pairs))
	for _, p := range pairs {
		if p[0] < 0 || p[0] > math.MaxUint16 || p[1] < math.MinInt32 || p[1] > math.MaxUint32 {
			writeError(w, http.StatusBadRequest, "style entry out of range")
			return
		}
		// 负数颜色按 32 位有符号 ARGB（Android Color 整数）解释
		m[uint16(p[0])] = uint32(p[1])
	}
	h.layer.SetStyles(m)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) getStyles(w http.ResponseWriter, r *http.Request) {
	m := h.layer.Styles()
	out := make([][2]uint32, 0, len(m))
	for k, v := range m {
		out = append(out, [2]uint32{uint32(k), v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	writeJSON(w, http.StatusOK, out)
}
