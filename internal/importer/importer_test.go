package importer

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"property-marketplace/internal/config"
	"property-marketplace/internal/models"
	"property-marketplace/internal/ratelimit"
)

const listingPage = `<!doctype html>
<html><head>
<title>Fallback title</title>
<meta property="og:title" content="4 bedroom duplex for rent in Lekki">
<meta property="og:description" content="Serviced duplex with 3 baths, rent per month.">
<meta property="og:image" content="/img/front.jpg">
<script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
  {"@type":"Organization","name":"Acme Realty"},
  {"@type":"RealEstateListing","name":"Lekki duplex",
   "image":["https://cdn.example.com/a.jpg","/img/front.jpg"],
   "offers":{"@type":"Offer","price":"2,500,000","priceCurrency":"NGN"},
   "address":{"streetAddress":"12 Admiralty Way","addressLocality":"Lekki","addressRegion":"Lagos"},
   "numberOfBedrooms":4,
   "floorSize":{"value":320}}
]}
</script>
</head><body><h1>Lekki duplex</h1></body></html>`

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseListing(t *testing.T) {
	draft := ParseListing(parse(t, listingPage), "https://listings.example.com/p/42")

	assert.Equal(t, "Lekki duplex", draft.Title)
	assert.Equal(t, 2500000.0, draft.Price)
	assert.Equal(t, "12 Admiralty Way, Lekki, Lagos", draft.Location)
	assert.Equal(t, []string{"https://listings.example.com/img/front.jpg", "https://cdn.example.com/a.jpg"}, draft.Images)
	require.NotNil(t, draft.Bedrooms)
	assert.Equal(t, 4, *draft.Bedrooms)
	require.NotNil(t, draft.Bathrooms)
	assert.Equal(t, 3, *draft.Bathrooms)
	require.NotNil(t, draft.Area)
	assert.Equal(t, 320.0, *draft.Area)
	assert.Equal(t, models.ListingStatusRent, draft.Status)
}

func TestParseListing_OpenGraphOnly(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="Plot of land on Victoria Island">
<meta property="product:price:amount" content="15000000">
</head></html>`
	draft := ParseListing(parse(t, html), "https://example.com/x")

	assert.Equal(t, "Plot of land on Victoria Island", draft.Title)
	assert.Equal(t, 15000000.0, draft.Price)
	assert.Equal(t, models.PropertyTypeLand, draft.Type)
	assert.Equal(t, models.ListingStatusSale, draft.Status)
	assert.Empty(t, draft.Images)
}

func TestGuessType_WordBoundaries(t *testing.T) {
	_, ok := guessType("Home near Victoria Island")
	assert.False(t, ok)

	typ, ok := guessType("Two bedroom flat")
	assert.True(t, ok)
	assert.Equal(t, models.PropertyTypeApartment, typ)
}

func testImporter(t *testing.T) *Importer {
	t.Helper()
	cfg := config.DefaultConfig().Importer
	cfg.AllowPrivateHosts = true
	im := NewImporter(cfg)
	im.retryDelay = time.Millisecond
	im.limiter = ratelimit.NewFetchLimiter(1, 0, 0)
	return im
}

func TestImport_FetchesAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "PropertyMarketplaceImporter")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	result, err := testImporter(t).Import(context.Background(), srv.URL+"/p/42#photos")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/p/42", result.SourceURL)
	assert.Equal(t, "Lekki duplex", result.Draft.Title)
	assert.False(t, result.Rendered)
}

func TestImport_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	_, err := testImporter(t).Import(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestImport_DoesNotRetryNotFound(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testImporter(t).Import(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestImport_InvalidURL(t *testing.T) {
	im := testImporter(t)
	for _, raw := range []string{"", "ftp://example.com/x", "not a url", "https://"} {
		_, err := im.Import(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

func TestImport_RefusesPrivateAddresses(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(listingPage))
	}))
	defer srv.Close()

	im := NewImporter(config.DefaultConfig().Importer)
	im.limiter = ratelimit.NewFetchLimiter(1, 0, 0)

	for _, raw := range []string{
		srv.URL + "/p/42",
		"http://10.1.2.3/listing",
		"http://169.254.169.254/latest/meta-data/",
		"http://[::1]:8080/",
		"http://100.64.1.1/",
		"http://0.0.0.0/",
	} {
		result, err := im.Import(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
		assert.Nil(t, result, raw)
	}
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.True(t, im.breaker.CanProceed(), "refused URLs are not upstream failures")
}

func TestDialControl_ChecksResolvedAddress(t *testing.T) {
	im := NewImporter(config.DefaultConfig().Importer)

	assert.ErrorIs(t, im.dialControl("tcp4", "127.0.0.1:80", nil), ErrInvalidURL)
	assert.ErrorIs(t, im.dialControl("tcp4", "192.168.1.20:443", nil), ErrInvalidURL)
	assert.ErrorIs(t, im.dialControl("tcp6", "[fd00::1]:443", nil), ErrInvalidURL)
	assert.NoError(t, im.dialControl("tcp4", "93.184.216.34:443", nil))

	im.allowPrivate = true
	assert.NoError(t, im.dialControl("tcp4", "127.0.0.1:80", nil))
}

func TestIsPublicIP(t *testing.T) {
	for ip, public := range map[string]bool{
		"8.8.8.8":         true,
		"2606:4700::1111": true,
		"127.0.0.1":       false,
		"10.0.0.1":        false,
		"172.16.5.4":      false,
		"192.168.0.1":     false,
		"169.254.169.254": false,
		"100.100.0.1":     false,
		"::1":             false,
		"fe80::1":         false,
		"::":              false,
	} {
		assert.Equal(t, public, isPublicIP(net.ParseIP(ip)), ip)
	}
}

func TestImport_CircuitBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	im := testImporter(t)
	im.breaker = NewCircuitBreaker(2, time.Hour)

	_, err := im.Import(context.Background(), srv.URL)
	assert.Error(t, err)

	_, err = im.Import(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_ResetsAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Millisecond)
	cb.RecordFailure(500)
	assert.False(t, cb.CanProceed())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, cb.CanProceed())

	isOpen, failures, total := cb.GetStatus()
	assert.False(t, isOpen)
	assert.Zero(t, failures)
	assert.Zero(t, total)
}
