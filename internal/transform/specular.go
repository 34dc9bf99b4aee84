package transform

import (
	"github.com/roach88/reflred/internal/config"
	"github.com/roach88/reflred/internal/ir"
)

// Specular is the reference reflectivity transform. Without a direct beam
// the counts pass through unnormalized.
type Specular struct{}

var _ Reflectivity = Specular{}

// Reduce implements Reflectivity.
func (Specular) Reduce(ch, db *ir.CrossSectionChannel, _ config.Configuration) (ir.Curve, error) {
	return normalized(ch, db)
}

// OffSpecularMap is the reference off-specular transform. Without
// detector-resolved data every point lies on the specular ridge (Qx = 0).
type OffSpecularMap struct{}

var _ OffSpecular = OffSpecularMap{}

// Reduce implements OffSpecular.
func (OffSpecularMap) Reduce(ch, db *ir.CrossSectionChannel, _ config.Configuration) (*ir.OffSpecData, error) {
	c, err := normalized(ch, db)
	if err != nil {
		return nil, err
	}
	return &ir.OffSpecData{
		Qx:        make([]float64, c.Len()),
		Qz:        c.Q,
		Intensity: c.R,
	}, nil
}
