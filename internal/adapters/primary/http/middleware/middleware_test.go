package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	method, path string
	status       int
}

type fakeObserver struct {
	seen []observation
}

func (f *fakeObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	f.seen = append(f.seen, observation{method, path, status})
}

func setupRouter(observer HTTPObserver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logging(), Metrics(observer))
	r.GET("/artifacts/:name", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextRequestID))
	})
	return r
}

func TestRequestID_Generated(t *testing.T) {
	r := setupRouter(&fakeObserver{})

	req, _ := http.NewRequest("GET", "/artifacts/cat.glb", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get("X-Request-ID")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, w.Body.String())
}

func TestRequestID_Propagated(t *testing.T) {
	r := setupRouter(&fakeObserver{})

	req, _ := http.NewRequest("GET", "/artifacts/cat.glb", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-123", w.Body.String())
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	observer := &fakeObserver{}
	r := setupRouter(observer)

	for _, path := range []string{"/artifacts/cat.glb", "/nope"} {
		req, _ := http.NewRequest("GET", path, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, observer.seen, 2)
	assert.Equal(t, observation{"GET", "/artifacts/:name", http.StatusOK}, observer.seen[0])
	assert.Equal(t, observation{"GET", "unmatched", http.StatusNotFound}, observer.seen[1])
}
