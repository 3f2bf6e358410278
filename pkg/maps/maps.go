// Package maps resolves addresses with Nominatim and driving routes with
// OSRM. Both are plain JSON-over-HTTP APIs.
package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shiva/moveops/config"
	"github.com/shiva/moveops/internal/model"
)

// MilesPerMeter converts OSRM distances.
const MilesPerMeter = 0.000621371

// ErrNoRoute is returned when OSRM finds no drivable route.
var ErrNoRoute = errors.New("maps: no route between points")

// Client talks to Nominatim and OSRM.
type Client struct {
	http         *http.Client
	nominatimURL string
	osrmURL      string
	userAgent    string
	countryCodes string
}

// NewClient creates a maps client from config.
func NewClient(cfg config.MapsConfig) *Client {
	return &Client{
		http:         &http.Client{Timeout: cfg.Timeout},
		nominatimURL: strings.TrimRight(cfg.NominatimURL, "/"),
		osrmURL:      strings.TrimRight(cfg.OSRMURL, "/"),
		userAgent:    cfg.UserAgent,
		countryCodes: cfg.CountryCodes,
	}
}

// ─── Geocoding ──────────────────────────────────────────────

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		City     string `json:"city"`
		Town     string `json:"town"`
		Village  string `json:"village"`
		State    string `json:"state"`
		Postcode string `json:"postcode"`
	} `json:"address"`
}

// Geocode resolves a free-form address. It returns model.ErrAddressNotFound
// when Nominatim has no match.
func (c *Client) Geocode(ctx context.Context, address string) (*model.Place, error) {
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")
	if c.countryCodes != "" {
		q.Set("countrycodes", c.countryCodes)
	}

	var results []nominatimResult
	if err := c.getJSON(ctx, c.nominatimURL+"/search?"+q.Encode(), &results); err != nil {
		return nil, fmt.Errorf("maps: geocode: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("maps: geocode %q: %w", address, model.ErrAddressNotFound)
	}

	r := results[0]
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("maps: geocode: bad lat %q: %w", r.Lat, err)
	}
	lng, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("maps: geocode: bad lon %q: %w", r.Lon, err)
	}

	city := r.Address.City
	if city == "" {
		city = r.Address.Town
	}
	if city == "" {
		city = r.Address.Village
	}

	return &model.Place{
		Address: r.DisplayName,
		Lat:     lat,
		Lng:     lng,
		City:    city,
		State:   r.Address.State,
		Zip:     r.Address.Postcode,
	}, nil
}

// ─── Routing ────────────────────────────────────────────────

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"` // meters
		Duration float64 `json:"duration"` // seconds
	} `json:"routes"`
}

// Route returns the driving distance and duration between two points.
func (c *Client) Route(ctx context.Context, origin, destination model.Location) (*model.Route, error) {
	// OSRM wants lng,lat order.
	coords := fmt.Sprintf("%f,%f;%f,%f", origin.Lng, origin.Lat, destination.Lng, destination.Lat)
	endpoint := c.osrmURL + "/route/v1/driving/" + coords + "?overview=false"

	var resp osrmResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("maps: route: %w", err)
	}
	if resp.Code != "Ok" || len(resp.Routes) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrNoRoute, resp.Code, resp.Message)
	}

	r := resp.Routes[0]
	return &model.Route{
		DistanceMeters:  r.Distance,
		DistanceMiles:   r.Distance * MilesPerMeter,
		DurationSeconds: r.Duration,
		DurationMinutes: int(math.Round(r.Duration / 60)),
	}, nil
}

// ─── HTTP ───────────────────────────────────────────────────

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	// Nominatim's usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d after %s: %s", req.URL.Host, resp.StatusCode,
			time.Since(start).Round(time.Millisecond), strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Host, err)
	}
	return nil
}
