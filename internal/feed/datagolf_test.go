package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golfpools/worker/internal/models"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "test-key", 5*time.Second)
	c.retryDelay = time.Millisecond
	return c
}

func TestLiveStats_Success(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "pga", r.URL.Query().Get("tour"))
		w.Write([]byte(`{"live_stats":[{"dg_id":101,"player_name":"Scheffler, Scottie","total":-12,"thru":14,"status":"active"}]}`))
	})

	stats, err := c.LiveStats(context.Background(), "pga")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(101), stats[0].DGID)
	assert.Equal(t, -12, stats[0].Total)
	require.NotNil(t, stats[0].Thru)
	assert.Equal(t, 14, *stats[0].Thru)
}

func TestLiveStats_MalformedPayloadIsNoData(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})

	stats, err := c.LiveStats(context.Background(), "pga")
	require.NoError(t, err, "Malformed payload ends the cycle without error")
	assert.Nil(t, stats)
}

func TestLiveStats_RateLimitRetriesThenTemporaryError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.LiveStats(context.Background(), "pga")
	require.Error(t, err)

	var tmp *TemporaryError
	require.True(t, errors.As(err, &tmp), "429 must classify as temporary")
	assert.Equal(t, http.StatusTooManyRequests, tmp.StatusCode)
	assert.Equal(t, int32(4), calls.Load(), "initial attempt plus bounded retries")
}

func TestLiveStats_ServerErrorRecoversOnRetry(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"live_stats":[]}`))
	})

	stats, err := c.LiveStats(context.Background(), "pga")
	require.NoError(t, err)
	assert.Empty(t, stats)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLiveStats_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"bad key"}`))
	})

	_, err := c.LiveStats(context.Background(), "pga")
	require.Error(t, err)

	var perm *PermanentError
	require.True(t, errors.As(err, &perm), "4xx must classify as permanent")
	assert.Equal(t, http.StatusForbidden, perm.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "permanent errors are never retried")
}

func TestFieldUpdates_ParsesTeeTimes(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"event_name":"The Open",
			"event_id":"evt-1",
			"current_round":2,
			"field":[
				{"dg_id":101,"player_name":"Scheffler, Scottie","teetime":"2025-07-18 08:15"},
				{"dg_id":102,"player_name":"McIlroy, Rory"}
			]
		}`))
	})

	field, err := c.FieldUpdates(context.Background(), "pga")
	require.NoError(t, err)
	assert.Equal(t, 2, field.CurrentRound)
	require.Len(t, field.Players, 2)

	tt, ok := field.Players[0].RoundTeeTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 7, 18, 8, 15, 0, 0, time.UTC), tt)

	_, ok = field.Players[1].RoundTeeTime()
	assert.False(t, ok)

	assert.True(t, field.HasPlayer(101))
	assert.False(t, field.HasPlayer(999))
}

func TestLiveStat_PlayerStatus(t *testing.T) {
	cases := map[string]models.PlayerStatus{
		"active":    models.StatusActive,
		"":          models.StatusActive,
		"wd":        models.StatusWithdrawn,
		"withdrawn": models.StatusWithdrawn,
		"cut":       models.StatusCut,
		"mc":        models.StatusCut,
		"dq":        models.StatusDisqualified,
		"dsq":       models.StatusDisqualified,
	}
	for raw, want := range cases {
		assert.Equal(t, want, LiveStat{Status: raw}.PlayerStatus(), "status %q", raw)
	}
}
