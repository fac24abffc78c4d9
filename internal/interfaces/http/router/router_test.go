package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func text(body string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, body) }
}

func TestRouter_Defaults(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)
}

func TestRouter_Setup(t *testing.T) {
	cases := []struct {
		name    string
		opts    []RouterOption
		hit     string
		miss    string
		wantAPI string
	}{
		{name: "default version", hit: "/api/v1/catalog/products", miss: "/api/v2/catalog/products", wantAPI: "/api/v1"},
		{name: "custom version", opts: []RouterOption{WithAPIVersion("v2")}, hit: "/api/v2/catalog/products", miss: "/api/v1/catalog/products", wantAPI: "/api/v2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := gin.New()
			catalog := NewDomainGroup("/catalog").GET("/products", text("products"))

			api := NewRouter(engine, tc.opts...).Register(catalog).Setup()

			require.NotNil(t, api)
			assert.Equal(t, tc.wantAPI, api.BasePath())
			assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, tc.hit).Code)
			assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodGet, tc.miss).Code)
		})
	}
}

func TestRouter_MiddlewareSkipsProbeRoutes(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", text("ok"))

	limited := func(c *gin.Context) {
		c.Header("X-RateLimit-Limit", "10")
		c.Next()
	}
	jobs := NewDomainGroup("/jobs").GET("/stats", text("stats"))
	NewRouter(engine, WithMiddleware(limited)).Register(jobs).Setup()

	assert.Equal(t, "10", serve(engine, http.MethodGet, "/api/v1/jobs/stats").Header().Get("X-RateLimit-Limit"))

	w := serve(engine, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_RegisterAcrossCalls(t *testing.T) {
	engine := gin.New()
	r := NewRouter(engine)
	r.Register(NewDomainGroup("/catalog").GET("/products", text("products")))
	r.Register(NewDomainGroup("/jobs").GET("/dead", text("dead")))
	r.Setup()

	assert.Equal(t, "products", serve(engine, http.MethodGet, "/api/v1/catalog/products").Body.String())
	assert.Equal(t, "dead", serve(engine, http.MethodGet, "/api/v1/jobs/dead").Body.String())
}

func TestDomainGroup_Methods(t *testing.T) {
	engine := gin.New()
	jobs := NewDomainGroup("/jobs").
		GET("/dead", text("list")).
		POST("/retry-all", text("retried")).
		DELETE("/:id", text("deleted"))
	jobs.RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, "list", serve(engine, http.MethodGet, "/api/v1/jobs/dead").Body.String())
	assert.Equal(t, "retried", serve(engine, http.MethodPost, "/api/v1/jobs/retry-all").Body.String())
	assert.Equal(t, "deleted", serve(engine, http.MethodDelete, "/api/v1/jobs/42").Body.String())
	assert.Equal(t, http.StatusNotFound, serve(engine, http.MethodPut, "/api/v1/jobs/42").Code)
}

func TestDomainGroup_StaticBesideParam(t *testing.T) {
	engine := gin.New()
	NewDomainGroup("/jobs").
		GET("/dead", text("dead")).
		GET("/:id", func(c *gin.Context) { c.String(http.StatusOK, "job "+c.Param("id")) }).
		RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, "dead", serve(engine, http.MethodGet, "/api/v1/jobs/dead").Body.String())
	assert.Equal(t, "job abc", serve(engine, http.MethodGet, "/api/v1/jobs/abc").Body.String())
}

func TestDomainGroup_SubgroupInheritsMiddleware(t *testing.T) {
	engine := gin.New()
	catalog := NewDomainGroup("/catalog").Use(func(c *gin.Context) {
		c.Header("X-Scope", "catalog")
		c.Next()
	})
	catalog.Group("/products").GET("", text("products list"))
	catalog.RegisterRoutes(engine.Group("/api/v1"))

	w := serve(engine, http.MethodGet, "/api/v1/catalog/products")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "products list", w.Body.String())
	assert.Equal(t, "catalog", w.Header().Get("X-Scope"))
}
