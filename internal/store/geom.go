package store

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

const srid = 4326

// pointEWKB encodes a WGS84 point as little-endian EWKB for ST_GeomFromEWKB.
func pointEWKB(lat, lng float64) ([]byte, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, eris.Errorf("store: coordinates out of range (%f, %f)", lat, lng)
	}
	p := geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(srid)
	b, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "store: encode point")
	}
	return b, nil
}
