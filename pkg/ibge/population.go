package ibge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/geobr-tools/munimerge/pkg/httputil"
)

// aggregateResponse mirrors the agregados API payload for one variable
// queried over all municipalities (locality level N6).
type aggregateResponse []struct {
	Resultados []struct {
		Series []struct {
			Localidade struct {
				ID string `json:"id"`
			} `json:"localidade"`
			Serie map[string]string `json:"serie"`
		} `json:"series"`
	} `json:"resultados"`
}

// Population fetches the population estimate for every municipality for the
// given year, keyed by municipality id. Entries with non-numeric values are
// skipped with a warning; a payload without the documented nesting is an
// ErrUnexpectedShape failure.
func (c *Client) Population(ctx context.Context, year int) (map[string]int, error) {
	cacheKey := strconv.Itoa(year)
	ns := c.cacheNamespace("population:")
	if ns != nil {
		var cached map[string]int
		if ok, err := ns.Get(cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	url := fmt.Sprintf("%s/%d/periodos/%d/variaveis/%d?localidades=N6%%5Ball%%5D",
		c.AgregadosURL, PopulationAggregateID, year, PopulationVariableID)
	c.Logger.Info("requesting IBGE population estimates", "year", year)

	var raw aggregateResponse
	err := httputil.RetryWithBackoff(ctx, func() error {
		return httputil.GetJSON(ctx, c.HTTP, url, &raw)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch population: %w", err)
	}

	if len(raw) == 0 || len(raw[0].Resultados) == 0 {
		return nil, fmt.Errorf("%w: empty aggregate payload", ErrUnexpectedShape)
	}

	yearKey := strconv.Itoa(year)
	population := make(map[string]int)
	for _, entry := range raw[0].Resultados[0].Series {
		id := entry.Localidade.ID
		value, ok := entry.Serie[yearKey]
		if id == "" || !ok || value == "" {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			c.Logger.Warn("ignoring non-numeric population value", "value", value, "municipality", id)
			continue
		}
		population[id] = n
	}
	c.Logger.Info("loaded population estimates", "municipalities", len(population), "year", year)

	if ns != nil {
		if err := ns.Set(cacheKey, population); err != nil {
			c.Logger.Warn("could not cache population response", "err", err)
		}
	}
	return population, nil
}
