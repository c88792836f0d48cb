// Package ibge fetches the inputs of the merge pipeline from the IBGE
// public APIs: population estimates from the agregados service and the
// municipal boundary mesh plus the municipality directory from the malhas
// and localidades services.
//
// Responses are cached on disk (see pkg/httputil) because both datasets
// change at most yearly, and transient upstream failures are retried with
// exponential backoff.
package ibge

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/geobr-tools/munimerge/pkg/httputil"
)

// ErrUnexpectedShape is returned when an IBGE response does not have the
// documented structure. It is a hard failure for the run; retrying with the
// same inputs would reproduce it.
var ErrUnexpectedShape = errors.New("unexpected response shape from IBGE API")

// Aggregate and variable identifying the population estimate series
// (Estimativas de População, total resident population).
const (
	PopulationAggregateID = 6579
	PopulationVariableID  = 9324
)

// Default endpoints. Tests point these at local servers.
const (
	DefaultAgregadosURL   = "https://servicodados.ibge.gov.br/api/v3/agregados"
	DefaultLocalidadesURL = "https://servicodados.ibge.gov.br/api/v1/localidades"
	DefaultMalhasURL      = "https://servicodados.ibge.gov.br/api/v3/malhas"
)

// Client talks to the IBGE APIs.
type Client struct {
	HTTP   *http.Client
	Cache  *httputil.Cache // nil disables response caching
	Logger *log.Logger

	AgregadosURL   string
	LocalidadesURL string
	MalhasURL      string
}

// NewClient creates a client with the production endpoints and a two-minute
// request timeout. The cache may be nil.
func NewClient(cache *httputil.Cache, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Client{
		HTTP:           &http.Client{Timeout: 2 * time.Minute},
		Cache:          cache,
		Logger:         logger,
		AgregadosURL:   DefaultAgregadosURL,
		LocalidadesURL: DefaultLocalidadesURL,
		MalhasURL:      DefaultMalhasURL,
	}
}

// cacheNamespace returns a namespaced view of the response cache, or nil
// when caching is disabled.
func (c *Client) cacheNamespace(ns string) *httputil.Cache {
	if c.Cache == nil {
		return nil
	}
	return c.Cache.Namespace(ns)
}
