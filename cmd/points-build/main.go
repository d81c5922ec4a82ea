package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"spatial-layer/internal/logger"
	"spatial-layer/internal/pointstore"
	"spatial-layer/internal/source"
	"spatial-layer/internal/utils"

	"github.com/cheggaaa/pb"
	"github.com/joho/godotenv"
)

// 文档注释：生成点数据二进制文件
// 背景：把 CSV、Postgres 或合成数据转换为加载格式（每点 4 个小端 float32），供服务启动时的 POINTS_PATH 或移动端资源使用。
// 约束：POINTS_SOURCE 取 csv / postgres / synthetic；输出前用 pointstore.FromPoints 做与加载相同的校验，不合法时不写文件。
func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	src := os.Getenv("POINTS_SOURCE")
	if src == "" {
		src = "csv"
	}
	out := os.Getenv("POINTS_OUT")
	if out == "" {
		out = filepath.Join("data", "points.bin")
	}
	bb, err := source.ParseBound(envOr("POINTS_BBOX", "nyc"))
	if err != nil {
		l.Error("bbox_parse_error", "err", err)
		os.Exit(1)
	}
	opts := source.Options{Bound: bb, Type: 1}
	if s := os.Getenv("POINTS_TYPE"); s != "" {
		if n, e := strconv.ParseUint(s, 10, 16); e == nil {
			opts.Type = uint16(n)
		}
	}
	opts.Limit = envInt("POINTS_LIMIT", 0)
	l.Debug("config_points_build", "source", src, "out", out, "limit", opts.Limit, "type", opts.Type)

	var pts []pointstore.Point
	var st source.Stats
	switch src {
	case "csv":
		pts, st, err = readCSV(os.Getenv("POINTS_CSV"), opts)
	case "postgres":
		pts, st, err = readPostgres(os.Getenv("POINTS_PG_QUERY"), opts)
	case "synthetic":
		n := opts.Limit
		if n <= 0 {
			n = 200000
		}
		pts = source.Synthetic(n, int64(envInt("POINTS_SEED", 42)), opts)
		st = source.Stats{Rows: n, Accepted: len(pts), Skipped: n - len(pts)}
	default:
		l.Error("points_source_unknown", "source", src)
		os.Exit(1)
	}
	if err != nil {
		l.Error("points_read_error", "source", src, "err", err)
		os.Exit(1)
	}
	l.Info("points_read_ok", "source", src, "rows", st.Rows, "accepted", st.Accepted, "skipped", st.Skipped)

	if _, err := pointstore.FromPoints(pts); err != nil {
		l.Error("points_invalid", "err", err)
		os.Exit(1)
	}
	// id 需能被 float32 精确表示，否则写出的文件加载时会出现重复 id
	if err := pointstore.CheckEncodable(pts); err != nil {
		l.Error("points_not_encodable", "err", err, "max_id", pointstore.MaxEncodableID-1)
		os.Exit(1)
	}
	if err := writeFile(out, pts); err != nil {
		l.Error("points_write_error", "path", out, "err", err)
		os.Exit(1)
	}
	l.Info("points_build_done", "path", out, "points", len(pts), "bytes", len(pts)*pointstore.BytesPerRecord)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n >= 0 {
			return n
		}
	}
	return def
}

// readCSV：按字节显示读取进度
func readCSV(path string, opts source.Options) ([]pointstore.Point, source.Stats, error) {
	if path == "" {
		path = filepath.Join("data", "taxi.csv")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, source.Stats{}, err
	}
	defer f.Close()
	var r io.Reader = f
	if fi, err := f.Stat(); err == nil && fi.Size() > 0 {
		bar := pb.New(int(fi.Size())).SetUnits(pb.U_BYTES).Format("[=> ]")
		bar.Start()
		defer bar.Finish()
		r = bar.NewProxyReader(f)
	}
	return source.ReadCSV(r, opts)
}

func readPostgres(query string, opts source.Options) ([]pointstore.Point, source.Stats, error) {
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		return nil, source.Stats{}, err
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	return source.QueryPostgres(ctx, db, query, opts)
}

const writeBatch = 4096

// writeFile：先写临时文件再改名，避免服务读到半截文件
func writeFile(path string, pts []pointstore.Point) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	bar := pb.StartNew(len(pts))
	for i := 0; i < len(pts) && err == nil; i += writeBatch {
		j := min(i+writeBatch, len(pts))
		err = pointstore.Encode(f, pts[i:j])
		bar.Add(j - i)
	}
	bar.Finish()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
