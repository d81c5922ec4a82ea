package source

import (
	"context"
	"database/sql"
	"fmt"

	"spatial-layer/internal/pointstore"
)

// DefaultQuery：默认取点语句，读取 _points 表
const DefaultQuery = `SELECT lat, lon FROM _points ORDER BY id`

// 文档注释：从 Postgres 读取点
// 背景：查询需返回 (lat, lon) 两列，可选第三列 type（smallint）；id 按结果顺序分配，与 CSV 路径一致。
// 约束：NULL 坐标按跳过处理；列数不是 2 或 3 时返回错误。
func QueryPostgres(ctx context.Context, db *sql.DB, query string, opts Options) ([]pointstore.Point, Stats, error) {
	if query == "" {
		query = DefaultQuery
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, Stats{}, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, Stats{}, err
	}
	if len(cols) != 2 && len(cols) != 3 {
		return nil, Stats{}, fmt.Errorf("points query returns %d columns, want lat, lon[, type]", len(cols))
	}
	c := &collector{opts: opts}
	for !c.full() && rows.Next() {
		var lat, lon sql.NullFloat64
		var typ sql.NullInt32
		dest := []any{&lat, &lon}
		if len(cols) == 3 {
			dest = append(dest, &typ)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, c.stats, err
		}
		if !lat.Valid || !lon.Valid {
			c.stats.Rows++
			c.stats.Skipped++
			continue
		}
		if typ.Valid && (typ.Int32 < 0 || typ.Int32 > 0xFFFF) {
			c.stats.Rows++
			c.stats.Skipped++
			continue
		}
		n := len(c.pts)
		c.add(lat.Float64, lon.Float64)
		if typ.Valid && len(c.pts) > n {
			c.pts[n].Type = uint16(typ.Int32)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, c.stats, err
	}
	return c.pts, c.stats, nil
}
