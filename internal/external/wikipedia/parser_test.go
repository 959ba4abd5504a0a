package wikipedia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/config"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/httputil"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

const constituentsHTML = `
<html><body>
<table class="wikitable sortable" id="constituents">
<tbody>
<tr><th>Symbol</th><th>Security</th><th>GICS Sector</th><th>GICS Sub-Industry</th><th>Headquarters Location</th><th>Date added</th></tr>
<tr><td><a href="#">MMM</a></td><td><a href="#">3M</a></td><td>Industrials</td><td>Industrial Conglomerates</td><td>Saint Paul, Minnesota</td><td>1957-03-04</td></tr>
<tr><td><a href="#">AAPL</a>
</td><td>Apple Inc.</td><td>Information Technology</td><td>Technology Hardware, Storage &amp; Peripherals</td><td>Cupertino, California</td><td>1982-11-30 (1982)</td></tr>
<tr><td>BRK.B</td><td>Berkshire Hathaway</td><td>Financials</td><td>Multi-Sector Holdings</td><td>Omaha, Nebraska</td><td></td></tr>
<tr><td>AAPL</td><td>duplicate</td><td>Information Technology</td><td></td><td></td><td></td></tr>
</tbody>
</table>
<table class="wikitable" id="changes"><tr><th>Date</th></tr><tr><td>2024-01-01</td></tr></table>
</body></html>`

func TestParseConstituents(t *testing.T) {
	got, err := ParseConstituents(strings.NewReader(constituentsHTML))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Constituent{
		Symbol:      "AAPL",
		Security:    "Apple Inc.",
		Sector:      "Information Technology",
		SubIndustry: "Technology Hardware, Storage & Peripherals",
		DateAdded:   time.Date(1982, 11, 30, 0, 0, 0, 0, time.UTC),
	}, got[1])
	assert.Equal(t, "BRK.B", got[2].Symbol)
	assert.True(t, got[2].DateAdded.IsZero())

	assert.Equal(t, []string{"MMM", "AAPL", "BRK.B"}, Symbols(got))
	assert.Equal(t, "Financials", Sectors(got)["BRK.B"])
}

func TestParseConstituents_Errors(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no table", `<html><body><p>nothing</p></body></html>`},
		{"no sector column", `<table id="constituents"><tr><th>Symbol</th></tr><tr><td>A</td></tr></table>`},
		{"no rows", `<table id="constituents"><tr><th>Symbol</th><th>GICS Sector</th></tr></table>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConstituents(strings.NewReader(tt.html))
			assert.Error(t, err)
		})
	}
}

func TestClient_FetchSP500(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(constituentsHTML))
	}))
	defer server.Close()

	cfg := &config.Config{Sources: config.SourcesConfig{RequestsPerSec: 100}}
	client := NewClient(httputil.New(cfg, logger.Nop()), logger.Nop(), server.URL)

	got, err := client.FetchSP500(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
