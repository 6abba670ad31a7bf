package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

type mockObserver struct {
	mock.Mock
}

func (m *mockObserver) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.Called(method, route, status, elapsed)
}

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	observer := new(mockObserver)
	observer.On("ObserveHTTP", http.MethodGet, "/transactions/:reference", http.StatusOK, mock.AnythingOfType("time.Duration")).Once()
	observer.On("ObserveHTTP", http.MethodGet, "unmatched", http.StatusNotFound, mock.AnythingOfType("time.Duration")).Once()

	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/transactions/:reference", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/transactions/txn_1", "/nowhere"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	observer.AssertExpectations(t)
}
