package transform

import (
	"fmt"
	"math"

	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
)

// GISANSMap is the reference GISANS transform.
type GISANSMap struct{}

var _ GISANS = GISANSMap{}

// Reduce implements GISANS. A direct beam is required.
func (GISANSMap) Reduce(ch, db *ir.CrossSectionChannel, _ config.Configuration) (*ir.GISANSData, error) {
	if db == nil {
		return nil, ir.NewReductionError(ch.Name, "GISANS requires a direct beam")
	}
	c, err := normalized(ch, db)
	if err != nil {
		return nil, err
	}
	lambda := make([]float64, c.Len())
	for i := range lambda {
		lambda[i] = ch.LambdaCenter
	}
	return &ir.GISANSData{
		Qy:        make([]float64, c.Len()),
		Qz:        c.Q,
		Lambda:    lambda,
		Intensity: c.R,
	}, nil
}

// Rebin averages the GISANS points of state across runs onto a regular
// QzNPts x QyNPts grid. Points outside [WLMin, WLMax] are ignored.
func (GISANSMap) Rebin(runs []*ir.Run, state string, opts config.GISANSOptions) (ir.GISANSGrid, error) {
	if opts.QyNPts < 1 || opts.QzNPts < 1 {
		return ir.GISANSGrid{}, ir.NewReductionError(state,
			fmt.Sprintf("invalid grid size %dx%d", opts.QyNPts, opts.QzNPts))
	}

	var qy, qz, intensity []float64
	for _, run := range runs {
		ch, ok := run.Channel(state)
		if !ok || ch.GISANS == nil {
			continue
		}
		d := ch.GISANS
		for i := range d.Intensity {
			if d.Lambda[i] < opts.WLMin || d.Lambda[i] > opts.WLMax {
				continue
			}
			qy = append(qy, d.Qy[i])
			qz = append(qz, d.Qz[i])
			intensity = append(intensity, d.Intensity[i])
		}
	}
	if len(intensity) == 0 {
		return ir.GISANSGrid{}, ir.NewReductionError(state, "no GISANS data in wavelength band")
	}

	yAxis := newAxis(qy, opts.QyNPts)
	zAxis := newAxis(qz, opts.QzNPts)

	sum := make([][]float64, opts.QzNPts)
	count := make([][]int, opts.QzNPts)
	for k := range sum {
		sum[k] = make([]float64, opts.QyNPts)
		count[k] = make([]int, opts.QyNPts)
	}
	for i := range intensity {
		y, z := yAxis.index(qy[i]), zAxis.index(qz[i])
		sum[z][y] += intensity[i]
		count[z][y]++
	}

	grid := ir.GISANSGrid{
		Qy:        yAxis.centers(),
		Qz:        zAxis.centers(),
		Intensity: make([][]float64, opts.QzNPts),
	}
	for z := range sum {
		grid.Intensity[z] = make([]float64, opts.QyNPts)
		for y := range sum[z] {
			if count[z][y] > 0 {
				grid.Intensity[z][y] = sum[z][y] / float64(count[z][y])
			}
		}
	}
	return grid, nil
}

type axis struct {
	min, width float64
	n          int
}

func newAxis(values []float64, n int) axis {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		lo, hi = lo-0.5, hi+0.5
	}
	return axis{min: lo, width: (hi - lo) / float64(n), n: n}
}

func (a axis) index(v float64) int {
	i := int((v - a.min) / a.width)
	return min(max(i, 0), a.n-1)
}

func (a axis) centers() []float64 {
	out := make([]float64, a.n)
	for i := range out {
		out[i] = a.min + (float64(i)+0.5)*a.width
	}
	return out
}
