package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"spatial-layer/internal/pointstore"
)

// ErrNoCoordinateColumns：表头中找不到经纬度列
var ErrNoCoordinateColumns = errors.New("source: no latitude/longitude columns")

// 文档注释：定位经纬度列
// 背景：出租车数据的列名随年份变化（pickup_latitude、Start_Lat 等）；优先取含 pickup 的列，其次取 lat/latitude 与 lon/lng/longitude。
func detectColumns(header []string) (latCol, lonCol int, err error) {
	latCol, lonCol = -1, -1
	fallbackLat, fallbackLon := -1, -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		isLat := strings.Contains(name, "lat")
		isLon := strings.Contains(name, "lon") || strings.Contains(name, "lng")
		if strings.Contains(name, "pickup") {
			if isLat && latCol < 0 {
				latCol = i
			}
			if isLon && lonCol < 0 {
				lonCol = i
			}
			continue
		}
		if isLat && fallbackLat < 0 {
			fallbackLat = i
		}
		if isLon && fallbackLon < 0 {
			fallbackLon = i
		}
	}
	if latCol < 0 || lonCol < 0 {
		latCol, lonCol = fallbackLat, fallbackLon
	}
	if latCol < 0 || lonCol < 0 {
		return -1, -1, fmt.Errorf("%w: header %v", ErrNoCoordinateColumns, header)
	}
	return latCol, lonCol, nil
}

// 文档注释：从带表头的 CSV 读取点
// 背景：无法解析的行直接跳过；达到 Limit 后停止读取。
// 约束：表头缺失或找不到经纬度列时返回错误。
func ReadCSV(r io.Reader, opts Options) ([]pointstore.Point, Stats, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read csv header: %w", err)
	}
	latCol, lonCol, err := detectColumns(header)
	if err != nil {
		return nil, Stats{}, err
	}
	c := &collector{opts: opts}
	for !c.full() {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				c.stats.Rows++
				c.stats.Skipped++
				continue
			}
			return nil, c.stats, err
		}
		if latCol >= len(rec) || lonCol >= len(rec) {
			c.stats.Rows++
			c.stats.Skipped++
			continue
		}
		lat, e1 := strconv.ParseFloat(strings.TrimSpace(rec[latCol]), 64)
		lon, e2 := strconv.ParseFloat(strings.TrimSpace(rec[lonCol]), 64)
		if e1 != nil || e2 != nil {
			c.stats.Rows++
			c.stats.Skipped++
			continue
		}
		c.add(lat, lon)
	}
	return c.pts, c.stats, nil
}
