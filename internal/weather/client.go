package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// DefaultBaseURL is the provider's 5-day/3-hour forecast endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/forecast"

// Client fetches forecasts with a bounded timeout; a slow provider must
// never keep the device from suspending.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a client. A zero timeout defaults to 15 seconds.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    DefaultBaseURL,
	}
}

// NewClientWithBaseURL is for tests pointed at an httptest server.
func NewClientWithBaseURL(baseURL string, timeout time.Duration) *Client {
	c := NewClient(timeout)
	c.baseURL = baseURL
	return c
}

// Provider wire format, trimmed to the fields used.
type providerResponse struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	List []providerSlot `json:"list"`
}

type providerSlot struct {
	Dt   int64 `json:"dt"`
	Main struct {
		TempMin float64 `json:"temp_min"`
		TempMax float64 `json:"temp_max"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Pop float64 `json:"pop"`
}

// FetchForecast retrieves and normalizes the forecast for a city.
func (c *Client) FetchForecast(ctx context.Context, city, apiKey string) (*Set, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather: provider returned %s", resp.Status)
	}

	var pr providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("weather: decode: %w", err)
	}
	if len(pr.List) == 0 {
		return nil, fmt.Errorf("weather: empty forecast for %q", city)
	}

	set := aggregate(&pr, time.Now())
	set.City = pr.City.Name
	if set.City == "" {
		set.City = city
	}
	return set, nil
}

// aggregate folds the provider's 3-hour slots into per-day summaries.
// The day's category is taken from the slot closest to midday, which is
// what the panel shows; temperatures are the day's extremes and the
// precipitation probability the day's maximum.
func aggregate(pr *providerResponse, now time.Time) *Set {
	type dayAgg struct {
		date    time.Time
		min     float64
		max     float64
		pop     float64
		cat     Category
		bestGap time.Duration
	}

	days := map[string]*dayAgg{}
	var order []string
	for _, slot := range pr.List {
		ts := time.Unix(slot.Dt, 0).Local()
		key := ts.Format("2006-01-02")
		a, ok := days[key]
		if !ok {
			a = &dayAgg{date: ts, min: slot.Main.TempMin, max: slot.Main.TempMax, bestGap: 24 * time.Hour}
			days[key] = a
			order = append(order, key)
		}
		if slot.Main.TempMin < a.min {
			a.min = slot.Main.TempMin
		}
		if slot.Main.TempMax > a.max {
			a.max = slot.Main.TempMax
		}
		if slot.Pop > a.pop {
			a.pop = slot.Pop
		}
		if len(slot.Weather) > 0 {
			midday := time.Date(ts.Year(), ts.Month(), ts.Day(), 12, 0, 0, 0, ts.Location())
			gap := ts.Sub(midday)
			if gap < 0 {
				gap = -gap
			}
			if gap < a.bestGap {
				a.bestGap = gap
				a.cat = Normalize(slot.Weather[0].Main, slot.Weather[0].Description)
			}
		}
	}
	sort.Strings(order)

	set := &Set{FetchedAt: now}
	for i, key := range order {
		a := days[key]
		sum := Summary{
			Category:  a.cat,
			TempMax:   a.max,
			TempMin:   a.min,
			PrecipPct: int(a.pop*100 + 0.5),
		}
		if i == 0 {
			set.Today = sum
		}
		if i == 1 {
			set.Tomorrow = sum
		}
		if i < len(set.Week) {
			set.Week[i] = Day{Weekday: a.date.Weekday(), Summary: sum}
		}
	}
	// The 3-hour feed covers five days; pad the tail so the weekly panel
	// always has seven entries.
	for i := len(order); i < len(set.Week); i++ {
		set.Week[i] = Day{
			Weekday: (set.Week[0].Weekday + time.Weekday(i)) % 7,
			Summary: Summary{Category: Unknown},
		}
	}
	return set
}
