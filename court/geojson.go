package court

import (
	"maps"
	"slices"

	"github.com/golang/geo/r2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func toOrb(p r2.Point) orb.Point { return orb.Point{p.X, p.Y} }

func lineFeature(l LineSegment, layer string) *geojson.Feature {
	f := geojson.NewFeature(orb.LineString{toOrb(l.P1()), toOrb(l.P2())})
	f.Properties["layer"] = layer
	f.Properties["rho"] = l.Rho()
	f.Properties["theta"] = l.Theta()
	f.Properties["orientation"] = string(l.Orientation())
	return f
}

// DetectionGeoJSON exports a detection in image pixel coordinates (y down).
// Features carry a "layer" property: segment, line, role, keypoint or court.
func DetectionGeoJSON(d *Detection, c *Court) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	clusterOf := make(map[int]int)
	for _, cl := range d.Clusters {
		for _, m := range cl.Members {
			clusterOf[m] = cl.ID
		}
	}
	for i, s := range d.Segments {
		f := lineFeature(s, "segment")
		f.Properties["index"] = i
		if id, ok := clusterOf[i]; ok {
			f.Properties["cluster"] = id
		}
		fc.Append(f)
	}
	for i, l := range d.Lines {
		f := lineFeature(l, "line")
		f.Properties["cluster"] = i
		fc.Append(f)
	}

	if d.Labels != nil {
		roles := d.Labels.ByRole()
		for _, role := range slices.Sorted(maps.Keys(roles)) {
			f := lineFeature(roles[role], "role")
			f.Properties["role"] = role
			fc.Append(f)
		}
	}

	for _, cp := range d.Correspondences {
		f := geojson.NewFeature(toOrb(cp.Image))
		f.Properties["layer"] = "keypoint"
		f.Properties["label"] = cp.Label
		f.Properties["world"] = []float64{cp.World.X, cp.World.Y, cp.World.Z}
		if d.Calibration != nil {
			f.Properties["reprojectionError"] = d.Calibration.Project(cp.World).Sub(cp.Image).Norm()
		}
		fc.Append(f)
	}

	if d.Calibration != nil && c != nil {
		lines := c.Lines()
		for _, name := range slices.Sorted(maps.Keys(lines)) {
			l := lines[name]
			f := geojson.NewFeature(orb.LineString{toOrb(d.Calibration.Project(l[0])), toOrb(d.Calibration.Project(l[1]))})
			f.Properties["layer"] = "court"
			f.Properties["name"] = name
			fc.Append(f)
		}
	}
	return fc
}
