package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cafe-robusta/backend/internal/models"
	"github.com/cafe-robusta/backend/pkg/restclient"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	rest := restclient.New(srv.URL, 5*time.Second)
	return NewClient(rest, zap.NewNop()), srv.Close
}

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
}

func TestGetWorkshop(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workshops/w1", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, models.Workshop{
			ID: "w1", Title: "Latte Art 101", Price: 500,
			MaxSeats: 12, BookedSeats: 12, Active: true,
		})
	})
	client, closeSrv := newTestClient(t, mux)
	defer closeSrv()

	w, err := client.GetWorkshop(context.Background(), "w1")

	require.NoError(t, err)
	assert.Equal(t, "Latte Art 101", w.Title)
	assert.True(t, w.IsFull())
	assert.Zero(t, w.AvailableSeats())
	assert.False(t, w.IsFree())
}

func TestGetWorkshop_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workshops/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":"workshop not found"}`))
	})
	client, closeSrv := newTestClient(t, mux)
	defer closeSrv()

	_, err := client.GetWorkshop(context.Background(), "missing")

	assert.ErrorIs(t, err, models.ErrWorkshopNotFound)
}

func TestListWorkshops_ActiveFilter(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/workshops", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("active")
		writeEnvelope(w, []models.Workshop{{ID: "w1", Active: true}})
	})
	client, closeSrv := newTestClient(t, mux)
	defer closeSrv()

	out, err := client.ListWorkshops(context.Background(), true)

	require.NoError(t, err)
	assert.Equal(t, "true", gotQuery)
	require.Len(t, out, 1)
	assert.Equal(t, "w1", out[0].ID)
}

func TestHeroMedia_ScopedHit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/site-media", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "home", r.URL.Query().Get("page"))
		writeEnvelope(w, []models.MediaEntry{
			{Page: "home", Section: "hero", URL: "https://cdn/x.mp4", Type: "video", Active: true},
		})
	})
	client, closeSrv := newTestClient(t, mux)
	defer closeSrv()

	m, err := client.HeroMedia(context.Background(), "home", "hero")

	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "https://cdn/x.mp4", m.URL)
}

func TestHeroMedia_FallbackPrefersHeroBackground(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/site-media", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("page") != "" {
			// The scoped query finds nothing.
			writeEnvelope(w, []models.MediaEntry{})
			return
		}
		writeEnvelope(w, []models.MediaEntry{
			{Page: "other", Section: "hero-background", URL: "https://cdn/wrong.jpg", Active: true},
			{Page: " Home ", Section: "banner", URL: "https://cdn/banner.jpg", Active: true},
			{Page: "home", Section: "hero-background", URL: "https://cdn/hero.jpg", Active: true},
		})
	})
	client, closeSrv := newTestClient(t, mux)
	defer closeSrv()

	m, err := client.HeroMedia(context.Background(), "home", "hero-background")

	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "https://cdn/hero.jpg", m.URL)
	assert.Equal(t, 2, calls)
}

func TestHeroMedia_FallbackSkipsInactive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/site-media", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "" {
			writeEnvelope(w, []models.MediaEntry{})
			return
		}
		writeEnvelope(w, []models.MediaEntry{
			{Page: "home", Section: "hero-background", URL: "https://cdn/off.jpg", Active: false},
			{Page: "HOME", Section: "banner", URL: "https://cdn/on.jpg", Active: true},
		})
	})
	client, closeSrv := newTestClient(t, mux)
	defer closeSrv()

	m, err := client.HeroMedia(context.Background(), "home", "hero-background")

	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "https://cdn/on.jpg", m.URL)
}

func TestHeroMedia_NothingForPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/site-media", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []models.MediaEntry{})
	})
	client, closeSrv := newTestClient(t, mux)
	defer closeSrv()

	m, err := client.HeroMedia(context.Background(), "home", "hero-background")

	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCreateTempRegistration(t *testing.T) {
	var gotBody map[string]interface{}
	mux := http.NewServeMux()
	mux.HandleFunc("/workshops/w2/register", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeEnvelope(w, map[string]string{"registration_id": "temp-7"})
	})
	client, closeSrv := newTestClient(t, mux)
	defer closeSrv()

	id, err := client.CreateTempRegistration(context.Background(), models.RegistrationDraft{
		Name: "Asha", Email: "asha@example.com", Phone: "9876543210",
		WorkshopID: "w2", Method: models.PaymentOnline, Amount: 750,
	})

	require.NoError(t, err)
	assert.Equal(t, "temp-7", id)
	assert.Equal(t, true, gotBody["createTempOnly"])
	assert.Equal(t, "online", gotBody["payment_method"])
	assert.Equal(t, float64(750), gotBody["amount"])
}

func TestCreateTempRegistration_EmptyIDIsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/workshops/w2/register", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]string{})
	})
	client, closeSrv := newTestClient(t, mux)
	defer closeSrv()

	_, err := client.CreateTempRegistration(context.Background(), models.RegistrationDraft{WorkshopID: "w2"})

	assert.Error(t, err)
}
