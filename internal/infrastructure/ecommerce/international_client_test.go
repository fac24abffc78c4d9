package ecommerce

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/china-facil/chinafacil-backend-sub000/internal/domain/marketplace"
)

func createInternationalTestClient(t *testing.T, handler http.HandlerFunc) *InternationalClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := NewInternationalConfig("instance")
	config.BaseURL = server.URL
	config.RequestsPerSecond = 0
	client, err := NewInternationalClient(config)
	require.NoError(t, err)
	return client
}

func TestInternationalConfig_Validate(t *testing.T) {
	err := (&InternationalConfig{}).Validate()
	assert.ErrorIs(t, err, ErrInternationalConfigMissingInstanceKey)

	config := &InternationalConfig{InstanceKey: "k"}
	require.NoError(t, config.Validate())
	assert.Equal(t, "en", config.Language)
	assert.Equal(t, InternationalProductionAPIURL, config.BaseURL)
	assert.Equal(t, 30, config.TimeoutSeconds)
}

func TestInternationalClient_ListCategories(t *testing.T) {
	t.Run("returns visible categories", func(t *testing.T) {
		client := createInternationalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/GetCategorySubcategoryInfoList", r.URL.Path)
			assert.Equal(t, "instance", r.URL.Query().Get("instanceKey"))
			w.Write([]byte(`{"ErrorCode":"Ok","CategoryInfoList":{"Content":[{"Id":"otc-1","Name":"Toys"},{"Id":"otc-2","Name":"Hidden","IsHidden":true}]}}`))
		})

		categories, err := client.ListCategories(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []marketplace.Category{{ID: "otc-1", Name: "Toys"}}, categories)
	})

	t.Run("missing list is invalid", func(t *testing.T) {
		client := createInternationalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ErrorCode":"Ok"}`))
		})

		_, err := client.ListCategories(context.Background())
		assert.ErrorIs(t, err, marketplace.ErrInvalidResponse)
	})
}

func TestInternationalClient_ListProductsByCategory(t *testing.T) {
	client := createInternationalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50", r.URL.Query().Get("framePosition"))
		assert.Equal(t, "25", r.URL.Query().Get("frameSize"))
		assert.Contains(t, r.URL.Query().Get("xmlParameters"), "<CategoryId>otc-1</CategoryId>")
		w.Write([]byte(`{"ErrorCode":"Ok","Result":{"Items":{"Content":[{"Id":"abb-1"},{"Id":"abb-2"},{"Id":"abb-3"}],"TotalCount":53}}}`))
	})

	page, err := client.ListProductsByCategory(context.Background(), "otc-1", 50, 25)
	require.NoError(t, err)
	assert.Len(t, page.Results, 3)
	assert.Equal(t, 53, page.Paging.Total)
	assert.False(t, page.HasMore(50, 25))
}

func TestInternationalClient_GetProduct(t *testing.T) {
	t.Run("not found code", func(t *testing.T) {
		client := createInternationalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"ErrorCode":"NotFound","ErrorDescription":"Item not found"}`))
		})

		_, err := client.GetProduct(context.Background(), "abb-1")
		assert.ErrorIs(t, err, marketplace.ErrProductNotFound)
	})

	t.Run("returns item", func(t *testing.T) {
		client := createInternationalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "abb-1", r.URL.Query().Get("itemId"))
			w.Write([]byte(`{"ErrorCode":"Ok","OtapiItemFullInfo":{"Id":"abb-1","Title":"Lamp"}}`))
		})

		item, err := client.GetProduct(context.Background(), "abb-1")
		require.NoError(t, err)
		assert.Equal(t, "Lamp", item["Title"])
	})
}

func TestInternationalClient_Search(t *testing.T) {
	t.Run("escapes keyword and converts page to frame", func(t *testing.T) {
		client := createInternationalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Query().Get("xmlParameters"), "<ItemTitle>cups &amp; mugs</ItemTitle>")
			assert.Equal(t, "20", r.URL.Query().Get("framePosition"))
			w.Write([]byte(`{"ErrorCode":"Ok","Result":{"Items":{"Content":[{"Id":"a"}],"TotalCount":"21"}}}`))
		})

		page, err := client.Search(context.Background(), marketplace.SearchQuery{Keyword: "cups & mugs", Page: 2, PageSize: 20})
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
		assert.Equal(t, 21, page.Total)
	})

	t.Run("upstream failure", func(t *testing.T) {
		client := createInternationalTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := client.Search(context.Background(), marketplace.SearchQuery{Keyword: "x"})
		assert.ErrorIs(t, err, marketplace.ErrUnavailable)
	})
}
