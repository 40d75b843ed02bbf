package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carona/internal/middleware"
)

func TestHTTPMetrics_CountsByRouteAndStatus(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	router := gin.New()
	router.Use(middleware.NewHTTPMetrics(reg).Middleware())
	router.GET("/v1/offers/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 3; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/offers/abc", nil))
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, label := range metric.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			assert.Equal(t, "/v1/offers/:id", labels["path"])
			if counter := metric.GetCounter(); counter != nil {
				values[mf.GetName()] = counter.GetValue()
			}
		}
	}

	assert.Equal(t, 3.0, values["carona_http_requests_total"])
	assert.Equal(t, 3.0, values["carona_http_request_errors_total"])
}
