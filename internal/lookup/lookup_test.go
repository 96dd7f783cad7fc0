package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestArticleDisplayNameSkipsBlanks(t *testing.T) {
	require.Equal(t, "Grohe - Mitigeur - Modèle GRT-300",
		ArticleInfo{Nom: "Mitigeur", Marque: "Grohe", Modele: "GRT-300"}.DisplayName())
	require.Equal(t, "Mitigeur",
		ArticleInfo{Nom: "Mitigeur"}.DisplayName())
	require.Equal(t, "Mitigeur - Modèle GRT-300",
		ArticleInfo{Nom: "Mitigeur", Modele: "GRT-300"}.DisplayName())
	require.Equal(t, UnknownArticle, ArticleInfo{}.DisplayName())
}

func TestClientPlaceholder(t *testing.T) {
	require.Equal(t, "Client #42", ClientPlaceholder(42))
}

func TestLookupDegradesOnUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	c := NewArticleClient(upstream.URL, NewHTTPClient(time.Second), zap.NewNop())
	_, ok := c.Article(context.Background(), "", 1)
	require.False(t, ok)
}

func TestLookupDegradesOnTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer upstream.Close()

	c := NewCustomerClient(upstream.URL, NewHTTPClient(50*time.Millisecond), zap.NewNop())
	_, ok := c.Customer(context.Background(), "", 1)
	require.False(t, ok)
}

func TestLookupPropagatesBearerToken(t *testing.T) {
	var gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"clientId":7}`))
	}))
	defer upstream.Close()

	c := NewCustomerClient(upstream.URL, NewHTTPClient(time.Second), zap.NewNop())
	id, ok := c.MyClientID(context.Background(), "tok-123")
	require.True(t, ok)
	require.EqualValues(t, 7, id)
	require.Equal(t, "Bearer tok-123", gotAuth)
}
