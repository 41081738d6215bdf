package imagery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/skyfield-labs/terralens/config"
	"github.com/skyfield-labs/terralens/internal/httpx"
)

// ndviEvalscript asks the process API for red, near-infrared and the data
// mask as raw FLOAT32 planes.
const ndviEvalscript = `//VERSION=3
function setup() {
  return {
    input: ["B04","B08","dataMask"],
    output: { bands: 3, sampleType: "FLOAT32" }
  };
}
function evaluatePixel(s) {
  return [s.B04, s.B08, s.dataMask];
}`

// ErrMissingCredentials is returned before any network call when the client
// has no OAuth client id/secret.
var ErrMissingCredentials = errors.New("imagery credentials not configured: set imagery.client_id and imagery.client_secret")

// Sample is one decoded scene: its anchor timestamp and the raster planes the
// evalscript requested.
type Sample struct {
	Timestamp string
	Raster    *Raster
}

// Recorder receives per-request telemetry. May be nil.
type Recorder interface {
	RecordImageryRequest(status string)
}

// Client fetches imagery through the process API. Requests fire once: a
// failed sample is logged and dropped, never retried, so a flaky afternoon
// costs at most one processing-unit charge per sample.
type Client struct {
	cfg      config.ImageryConfig
	http     *httpx.Client
	logger   *log.Logger
	recorder Recorder
}

// New creates an imagery client. Credentials fall back to the
// SENTINELHUB_CLIENT_ID / SENTINELHUB_CLIENT_SECRET environment variables.
func New(cfg config.ImageryConfig, logger *log.Logger, recorder Recorder) *Client {
	cfg = cfg.Normalize()
	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("SENTINELHUB_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = os.Getenv("SENTINELHUB_CLIENT_SECRET")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[IMAGERY] ", log.LstdFlags)
	}
	return &Client{
		cfg:      cfg,
		http:     httpx.New(cfg.FetchTimeout, cfg.MaxRetries, 300*time.Millisecond),
		logger:   logger,
		recorder: recorder,
	}
}

// Token acquires an OAuth2 access token with the client-credentials grant.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", ErrMissingCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.AuthTimeout)
	defer cancel()

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.http.DoForm(ctx, http.MethodPost, c.cfg.TokenURL, form, &out); err != nil {
		c.record("auth_error")
		return "", fmt.Errorf("imagery token: %w", err)
	}
	if out.AccessToken == "" {
		c.record("auth_error")
		return "", fmt.Errorf("imagery token: empty access_token in response")
	}
	c.record("auth_ok")
	return out.AccessToken, nil
}

type processPayload struct {
	Input      processInput  `json:"input"`
	Output     processOutput `json:"output"`
	Evalscript string        `json:"evalscript"`
}

type processInput struct {
	Bounds processBounds `json:"bounds"`
	Data   []processData `json:"data"`
}

type processBounds struct {
	BBox [4]float64 `json:"bbox"`
}

type processData struct {
	Type       string            `json:"type"`
	DataFilter processDataFilter `json:"dataFilter"`
}

type processDataFilter struct {
	TimeRange        processTimeRange `json:"timeRange"`
	MaxCloudCoverage int              `json:"maxCloudCoverage"`
}

type processTimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processOutput struct {
	Width     int               `json:"width"`
	Height    *int              `json:"height"` // null lets the API keep aspect ratio
	Responses []processResponse `json:"responses"`
}

type processResponse struct {
	Identifier string        `json:"identifier"`
	Format     processFormat `json:"format"`
}

type processFormat struct {
	Type string `json:"type"`
}

// FetchStack pulls the 30-day window anchored at end as two samples, at end
// and end-15d, each a seven-day mosaic capped at 40% cloud cover. Failed or
// undecodable samples are dropped without retry; the returned stack has
// between zero and two entries. The error return is reserved for context
// cancellation.
func (c *Client) FetchStack(ctx context.Context, token string, bbox [4]float64, end time.Time) ([]Sample, error) {
	dates := []time.Time{end, end.Add(-15 * 24 * time.Hour)}
	samples := make([]Sample, 0, len(dates))
	for _, dt := range dates {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		payload := c.processRequest(bbox, dt)

		fctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
		body, err := c.http.DoBytes(fctx, http.MethodPost, c.cfg.ProcessURL,
			map[string]string{"Authorization": "Bearer " + token}, payload)
		cancel()
		if err != nil {
			c.record("fetch_error")
			c.logger.Printf("sample %s dropped: %v", dt.Format("2006-01-02"), err)
			continue
		}

		raster, err := DecodeFloat32TIFF(body)
		if err != nil {
			c.record("decode_error")
			c.logger.Printf("sample %s dropped: %v", dt.Format("2006-01-02"), err)
			continue
		}
		if raster.Bands != 3 {
			c.record("decode_error")
			c.logger.Printf("sample %s dropped: got %d bands, want 3", dt.Format("2006-01-02"), raster.Bands)
			continue
		}

		c.record("ok")
		samples = append(samples, Sample{
			Timestamp: dt.UTC().Format(time.RFC3339),
			Raster:    raster,
		})
	}
	return samples, nil
}

func (c *Client) processRequest(bbox [4]float64, dt time.Time) processPayload {
	return processPayload{
		Input: processInput{
			Bounds: processBounds{BBox: bbox},
			Data: []processData{{
				Type: "S2L2A",
				DataFilter: processDataFilter{
					TimeRange: processTimeRange{
						From: dt.Add(-7 * 24 * time.Hour).UTC().Format(time.RFC3339),
						To:   dt.UTC().Format(time.RFC3339),
					},
					MaxCloudCoverage: c.cfg.MaxCloudCoverage,
				},
			}},
		},
		Output: processOutput{
			Width:  c.cfg.Width,
			Height: nil,
			Responses: []processResponse{{
				Identifier: "default",
				Format:     processFormat{Type: "image/tiff"},
			}},
		},
		Evalscript: ndviEvalscript,
	}
}

func (c *Client) record(status string) {
	if c.recorder != nil {
		c.recorder.RecordImageryRequest(status)
	}
}
