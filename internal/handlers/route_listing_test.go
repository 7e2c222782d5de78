package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteListingHandler_CollectRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", func(_ *gin.Context) {})
	v1 := router.Group("/v1")
	{
		v1.GET("/bugs", func(_ *gin.Context) {})
		v1.POST("/bugs", func(_ *gin.Context) {})
		v1.PUT("/bugs/:id/status", func(_ *gin.Context) {})
	}
	router.GET("/debug/pprof", func(_ *gin.Context) {})

	handler := NewRouteListingHandler("bugtracker")
	handler.CollectRoutes(router)

	require.Len(t, handler.routes, 4)
	assert.Equal(t, RouteInfo{Method: "GET", Path: "/health", HandlerName: handler.routes[0].HandlerName}, handler.routes[0])
	assert.Equal(t, "GET", handler.routes[1].Method)
	assert.Equal(t, "/v1/bugs", handler.routes[1].Path)
	assert.Equal(t, "POST", handler.routes[2].Method)
	assert.Equal(t, "/v1/bugs/:id/status", handler.routes[3].Path)
}

func TestRouteListingHandler_GetRouteListingJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewRouteListingHandler("bugtracker")
	router.GET("/v1/routes", handler.GetRouteListingJSON)
	handler.CollectRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/routes", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Service string      `json:"service"`
		Routes  []RouteInfo `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bugtracker", body.Service)
	require.Len(t, body.Routes, 1)
	assert.Equal(t, "/v1/routes", body.Routes[0].Path)
}
