package ibge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ctessum/geom"
	"github.com/paulmach/orb/geojson"

	"github.com/geobr-tools/munimerge/pkg/geo"
	"github.com/geobr-tools/munimerge/pkg/httputil"
	"github.com/geobr-tools/munimerge/pkg/region"
)

// Municipality is one directory entry from the localidades API.
type Municipality struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

// localityEntry mirrors the localidades payload. Municipality ids are
// numeric there, unlike everywhere else in the IBGE APIs.
type localityEntry struct {
	ID           int64  `json:"id"`
	Nome         string `json:"nome"`
	Microrregiao *struct {
		Mesorregiao struct {
			UF struct {
				Sigla string `json:"sigla"`
			} `json:"UF"`
		} `json:"mesorregiao"`
	} `json:"microrregiao"`
}

// Municipalities fetches the municipality directory: display name and state
// code keyed by municipality id.
func (c *Client) Municipalities(ctx context.Context) (map[string]Municipality, error) {
	const cacheKey = "directory"
	ns := c.cacheNamespace("municipalities:")
	if ns != nil {
		var cached map[string]Municipality
		if ok, err := ns.Get(cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	url := c.LocalidadesURL + "/municipios"
	c.Logger.Info("requesting IBGE municipality directory")

	var raw []localityEntry
	err := httputil.RetryWithBackoff(ctx, func() error {
		return httputil.GetJSON(ctx, c.HTTP, url, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch municipality directory: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty municipality directory", ErrUnexpectedShape)
	}

	directory := make(map[string]Municipality, len(raw))
	for _, entry := range raw {
		m := Municipality{Name: entry.Nome}
		if entry.Microrregiao != nil {
			m.State = entry.Microrregiao.Mesorregiao.UF.Sigla
		}
		directory[strconv.FormatInt(entry.ID, 10)] = m
	}

	if ns != nil {
		if err := ns.Set(cacheKey, directory); err != nil {
			c.Logger.Warn("could not cache municipality directory", "err", err)
		}
	}
	return directory, nil
}

// Mesh fetches the national municipal boundary mesh as GeoJSON in
// geographic SIRGAS 2000 coordinates. The low-resolution variant is enough
// for adjacency and centroid work and keeps the download under control.
func (c *Client) Mesh(ctx context.Context) (*geojson.FeatureCollection, error) {
	const cacheKey = "municipio-minima"
	ns := c.cacheNamespace("mesh:")
	if ns != nil {
		cached := geojson.NewFeatureCollection()
		if ok, err := ns.Get(cacheKey, cached); err == nil && ok {
			return cached, nil
		}
	}

	url := c.MalhasURL + "/paises/BR?formato=application%2Fvnd.geo%2Bjson&intrarregiao=municipio&qualidade=minima"
	c.Logger.Info("requesting IBGE municipal mesh")

	fc := geojson.NewFeatureCollection()
	err := httputil.RetryWithBackoff(ctx, func() error {
		return httputil.GetJSON(ctx, c.HTTP, url, fc)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch municipal mesh: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("%w: mesh has no features", ErrUnexpectedShape)
	}

	if ns != nil {
		if err := ns.Set(cacheKey, fc); err != nil {
			c.Logger.Warn("could not cache municipal mesh", "err", err)
		}
	}
	return fc, nil
}

// Units assembles the pipeline input: one labeled polygon per municipality,
// reprojected into the planar calculation system. Mesh features without a
// municipality code are an ErrUnexpectedShape failure; features missing
// from the directory keep their code as display name.
func (c *Client) Units(ctx context.Context) ([]region.Unit, error) {
	fc, err := c.Mesh(ctx)
	if err != nil {
		return nil, err
	}
	directory, err := c.Municipalities(ctx)
	if err != nil {
		return nil, err
	}

	transform, err := geo.OutputToCalculation()
	if err != nil {
		return nil, err
	}

	units := make([]region.Unit, 0, len(fc.Features))
	for _, f := range fc.Features {
		code := f.Properties.MustString("codarea", "")
		if code == "" {
			return nil, fmt.Errorf("%w: mesh feature without codarea", ErrUnexpectedShape)
		}

		polygonal, err := geo.FromOrb(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("%w: municipality %s: %v", ErrUnexpectedShape, code, err)
		}
		projected, err := polygonal.Transform(transform)
		if err != nil {
			return nil, fmt.Errorf("reproject municipality %s: %w", code, err)
		}
		planar, ok := projected.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("reproject municipality %s: unexpected geometry type %T", code, projected)
		}

		u := region.Unit{ID: code, Name: code, Geometry: planar}
		if m, ok := directory[code]; ok {
			u.Name = m.Name
			u.State = m.State
		} else {
			c.Logger.Warn("municipality missing from directory", "municipality", code)
		}
		units = append(units, u)
	}
	c.Logger.Info("assembled municipal units", "count", len(units))
	return units, nil
}
