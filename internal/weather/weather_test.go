package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		primary     string
		description string
		want        Category
	}{
		{"Clear", "clear sky", Clear},
		{"Clouds", "overcast clouds", Cloudy},
		{"Clouds", "scattered clouds", PartlyCloudy},
		{"Clouds", "few clouds", PartlyCloudy},
		{"Rain", "moderate rain", Rain},
		{"Rain", "light rain", LightRain},
		{"Rain", "heavy intensity rain", HeavyRain},
		{"Drizzle", "drizzle", LightRain},
		{"Snow", "snow", Snow},
		{"Thunderstorm", "thunderstorm with hail", Thunderstorm},
		{"Thunderstorm", "", Thunderstorm},
		{"Mist", "mist", Fog},
		{"Fog", "fog", Fog},
		{"Sandstorm", "blowing sand", Unknown},
		{"", "", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.primary+"/"+tt.description, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.primary, tt.description))
		})
	}
}

func TestCategoryIconFile(t *testing.T) {
	assert.Equal(t, "partly-cloudy.svg", PartlyCloudy.IconFile())
	assert.Equal(t, "unknown.svg", Unknown.IconFile())
}

// slotJSON builds one provider slot at the given time.
func slotJSON(ts time.Time, min, max, pop float64, main, desc string) string {
	return fmt.Sprintf(`{"dt":%d,"main":{"temp_min":%g,"temp_max":%g},"weather":[{"main":%q,"description":%q}],"pop":%g}`,
		ts.Unix(), min, max, main, desc, pop)
}

func TestFetchForecast(t *testing.T) {
	tomorrow := time.Now().AddDate(0, 0, 1)
	day0 := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 6, 0, 0, 0, time.Local)
	day1 := day0.Add(24 * time.Hour)
	body := fmt.Sprintf(`{"city":{"name":"Haarlem"},"list":[%s,%s,%s,%s]}`,
		slotJSON(day0, 4, 7, 0.1, "Clouds", "few clouds"),
		slotJSON(day0.Add(6*time.Hour), 6, 12, 0.55, "Rain", "light rain"),
		slotJSON(day0.Add(12*time.Hour), 5, 9, 0.2, "Clouds", "overcast clouds"),
		slotJSON(day1.Add(6*time.Hour), -1, 3, 0.8, "Snow", "snow"),
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Haarlem", r.URL.Query().Get("q"))
		assert.Equal(t, "key123", r.URL.Query().Get("appid"))
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	set, err := NewClientWithBaseURL(srv.URL, time.Second).FetchForecast(context.Background(), "Haarlem", "key123")
	require.NoError(t, err)

	assert.Equal(t, "Haarlem", set.City)
	// Today: extremes over all of the day's slots, max precipitation,
	// category from the slot closest to midday (the light rain one).
	assert.Equal(t, 12.0, set.Today.TempMax)
	assert.Equal(t, 4.0, set.Today.TempMin)
	assert.Equal(t, 55, set.Today.PrecipPct)
	assert.Equal(t, LightRain, set.Today.Category)

	assert.Equal(t, Snow, set.Tomorrow.Category)
	assert.Equal(t, 80, set.Tomorrow.PrecipPct)

	// The weekly panel always has seven entries; days past the feed are
	// Unknown placeholders.
	assert.Equal(t, LightRain, set.Week[0].Category)
	assert.Equal(t, Snow, set.Week[1].Category)
	assert.Equal(t, Unknown, set.Week[6].Category)
}

func TestFetchForecastProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClientWithBaseURL(srv.URL, time.Second).FetchForecast(context.Background(), "X", "bad")
	assert.Error(t, err)
}

func TestFetchForecastEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"city":{"name":"X"},"list":[]}`)
	}))
	defer srv.Close()

	_, err := NewClientWithBaseURL(srv.URL, time.Second).FetchForecast(context.Background(), "X", "k")
	assert.Error(t, err)
}
