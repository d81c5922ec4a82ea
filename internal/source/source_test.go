package source

import (
	"errors"
	"strings"
	"testing"

	"github.com/cheekybits/is"
	"github.com/paulmach/orb"
)

func TestReadCSVPickupColumns(t *testing.T) {
	is := is.New(t)
	in := `vendor,pickup_datetime,passengers,distance,rate,pickup_longitude,pickup_latitude,dropoff_longitude,dropoff_latitude
1,2015-01-01,1,1.2,1,-73.99,40.75,-73.98,40.76
1,2015-01-01,1,1.2,1,0,0,-73.98,40.76
1,2015-01-01,1,1.2,1,abc,40.75,-73.98,40.76
1,2015-01-01,1,1.2,1,-118.24,34.05,-73.98,40.76
1,2015-01-01,1,1.2,1,-74.00,40.71,-73.98,40.76
`
	pts, st, err := ReadCSV(strings.NewReader(in), DefaultOptions())
	is.NoErr(err)
	is.Equal(len(pts), 2)
	is.Equal(pts[0].ID, uint32(0))
	is.Equal(pts[1].ID, uint32(1))
	is.Equal(pts[0].Lat, 40.75)
	is.Equal(pts[0].Lon, -73.99)
	is.Equal(pts[1].Type, uint16(1))
	is.Equal(st.Rows, 5)
	is.Equal(st.Skipped, 3)
}

func TestReadCSVFallbackColumnsNoBound(t *testing.T) {
	is := is.New(t)
	in := "name,Longitude,Latitude\na,-118.24,34.05\nb,2.35,48.85\n"
	opts := Options{Type: 4, FirstID: 100}
	pts, _, err := ReadCSV(strings.NewReader(in), opts)
	is.NoErr(err)
	is.Equal(len(pts), 2)
	is.Equal(pts[1].ID, uint32(101))
	is.Equal(pts[1].Type, uint16(4))
	is.Equal(pts[1].Lat, 48.85)
}

func TestReadCSVLimit(t *testing.T) {
	is := is.New(t)
	in := "lat,lon\n1,1\n2,2\n3,3\n"
	pts, _, err := ReadCSV(strings.NewReader(in), Options{Limit: 2})
	is.NoErr(err)
	is.Equal(len(pts), 2)
}

func TestReadCSVMissingColumns(t *testing.T) {
	is := is.New(t)
	_, _, err := ReadCSV(strings.NewReader("a,b\n1,2\n"), Options{})
	is.True(errors.Is(err, ErrNoCoordinateColumns))
}

func TestParseBound(t *testing.T) {
	is := is.New(t)
	b, err := ParseBound("")
	is.NoErr(err)
	is.True(b.IsZero())
	b, err = ParseBound("nyc")
	is.NoErr(err)
	is.Equal(b, NYCBound)
	b, err = ParseBound("-10, -5, 10, 5")
	is.NoErr(err)
	is.Equal(b, orb.Bound{Min: orb.Point{-10, -5}, Max: orb.Point{10, 5}})
	_, err = ParseBound("1,2,3")
	is.Err(err)
	_, err = ParseBound("10,0,-10,5")
	is.Err(err)
}

func TestSyntheticDeterministic(t *testing.T) {
	is := is.New(t)
	a := Synthetic(500, 42, DefaultOptions())
	b := Synthetic(500, 42, DefaultOptions())
	is.True(len(a) > 0)
	is.True(len(a) <= 500)
	is.Equal(len(a), len(b))
	is.Equal(a[10], b[10])
	for i, p := range a {
		is.Equal(p.ID, uint32(i))
		is.True(NYCBound.Contains(orb.Point{p.Lon, p.Lat}))
	}
}
