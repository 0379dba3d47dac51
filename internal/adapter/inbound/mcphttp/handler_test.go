package mcphttp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cardapiodigital/cardapio-mcp/internal/adapter/inbound/mcphttp"
	"github.com/cardapiodigital/cardapio-mcp/internal/domain"
	"github.com/cardapiodigital/cardapio-mcp/internal/usecase"
	"github.com/cardapiodigital/cardapio-mcp/pkg/shared/mcpjsonrpc"
)

// MockCatalogRepository doubles as CatalogRepository and StorePinger.
type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) SearchProducts(ctx context.Context, q usecase.ProductQuery) ([]domain.Product, error) {
	args := m.Called(ctx, q)
	var products []domain.Product
	if v := args.Get(0); v != nil {
		products = v.([]domain.Product)
	}
	return products, args.Error(1)
}

func (m *MockCatalogRepository) CategoriesByID(ctx context.Context, ids []string) ([]domain.Category, error) {
	args := m.Called(ctx, ids)
	var categories []domain.Category
	if v := args.Get(0); v != nil {
		categories = v.([]domain.Category)
	}
	return categories, args.Error(1)
}

func (m *MockCatalogRepository) ListCategories(ctx context.Context, catalogID string) ([]domain.Category, error) {
	args := m.Called(ctx, catalogID)
	var categories []domain.Category
	if v := args.Get(0); v != nil {
		categories = v.([]domain.Category)
	}
	return categories, args.Error(1)
}

func (m *MockCatalogRepository) CountAvailableProducts(ctx context.Context, catalogID string) ([]domain.CategoryCount, error) {
	args := m.Called(ctx, catalogID)
	var rows []domain.CategoryCount
	if v := args.Get(0); v != nil {
		rows = v.([]domain.CategoryCount)
	}
	return rows, args.Error(1)
}

func (m *MockCatalogRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newTestHandler(repo *MockCatalogRepository, opts mcphttp.Options) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.ServiceName == "" {
		opts.ServiceName = "cardapio-mcp"
	}
	if opts.Version == "" {
		opts.Version = "test"
	}
	toolset := usecase.NewToolset(
		usecase.NewSearchProductsUseCase(repo, logger),
		usecase.NewListCategoriesUseCase(repo, "cardapio-principal", logger),
		usecase.NewStoreInfoUseCase(domain.StoreInfo{Name: "Loja Teste"}),
		"https://cardapio.digital/cardapio",
		logger,
	)
	return mcphttp.NewHandler(toolset, repo, opts, logger).Routes()
}

func postRPC(t *testing.T, handler http.Handler, body any) (*httptest.ResponseRecorder, mcpjsonrpc.Response) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp mcpjsonrpc.Response
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestRPC_Initialize(t *testing.T) {
	handler := newTestHandler(new(MockCatalogRepository), mcphttp.Options{})

	rec, resp := postRPC(t, handler, mcpjsonrpc.Request{Version: "2.0", Method: "initialize", ID: 1})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	assert.Equal(t, mcphttp.ProtocolVersion, result["protocolVersion"])
	serverInfo := result["serverInfo"].(map[string]any)
	assert.Equal(t, "cardapio-mcp", serverInfo["name"])
}

func TestRPC_WrongProtocolTag(t *testing.T) {
	handler := newTestHandler(new(MockCatalogRepository), mcphttp.Options{})

	rec, resp := postRPC(t, handler, map[string]any{"jsonrpc": "1.0", "method": "initialize", "id": 1})
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpjsonrpc.CodeInvalidRequest, resp.Error.Code)
}

func TestRPC_ParseError(t *testing.T) {
	handler := newTestHandler(new(MockCatalogRepository), mcphttp.Options{})

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp mcpjsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpjsonrpc.CodeParseError, resp.Error.Code)
}

func TestRPC_MethodNotFound(t *testing.T) {
	handler := newTestHandler(new(MockCatalogRepository), mcphttp.Options{})

	_, resp := postRPC(t, handler, mcpjsonrpc.Request{Version: "2.0", Method: "resources/list", ID: 2})
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpjsonrpc.CodeMethodNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "resources/list")
}

func TestRPC_ToolsList(t *testing.T) {
	handler := newTestHandler(new(MockCatalogRepository), mcphttp.Options{})

	_, resp := postRPC(t, handler, mcpjsonrpc.Request{Version: "2.0", Method: "tools/list", ID: 3})
	require.Nil(t, resp.Error)

	result := resp.Result.(map[string]any)
	tools := result["tools"].([]any)
	assert.Len(t, tools, 3)
}

func TestRPC_ToolsCall_UnknownTool(t *testing.T) {
	handler := newTestHandler(new(MockCatalogRepository), mcphttp.Options{})

	params, _ := json.Marshal(mcpjsonrpc.CallToolParams{Name: "ferramenta_inexistente"})
	_, resp := postRPC(t, handler, mcpjsonrpc.Request{Version: "2.0", Method: "tools/call", ID: 4, Params: params})

	require.NotNil(t, resp.Error)
	assert.Equal(t, mcpjsonrpc.CodeServerErrorToolNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "ferramenta_inexistente")
}

func TestRPC_ToolsCall_Search(t *testing.T) {
	repo := new(MockCatalogRepository)
	repo.On("SearchProducts", mock.Anything, mock.Anything).
		Return([]domain.Product{{ID: "p1", Name: "Coxinha de Frango", Price: "8.50", CategoryID: "c1"}}, nil).Once()
	repo.On("CategoriesByID", mock.Anything, []string{"c1"}).
		Return([]domain.Category{{ID: "c1", Name: "Salgados"}}, nil).Once()
	handler := newTestHandler(repo, mcphttp.Options{})

	params, _ := json.Marshal(mcpjsonrpc.CallToolParams{
		Name:      usecase.ToolSearchProducts,
		Arguments: map[string]any{"termo_busca": "coxinha"},
	})
	rec, resp := postRPC(t, handler, mcpjsonrpc.Request{Version: "2.0", Method: "tools/call", ID: 5, Params: params})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, resp.Error)
	assert.Contains(t, rec.Body.String(), "Coxinha de Frango")
	assert.Contains(t, rec.Body.String(), "tempo_execucao")
}

func TestBearerGate(t *testing.T) {
	opts := mcphttp.Options{AuthToken: "segredo"}

	t.Run("POST / without token is rejected", func(t *testing.T) {
		handler := newTestHandler(new(MockCatalogRepository), opts)
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("POST / with wrong token is rejected", func(t *testing.T) {
		handler := newTestHandler(new(MockCatalogRepository), opts)
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Authorization", "Bearer errado")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("POST / with the exact token passes", func(t *testing.T) {
		handler := newTestHandler(new(MockCatalogRepository), opts)
		raw, _ := json.Marshal(mcpjsonrpc.Request{Version: "2.0", Method: "initialize", ID: 1})
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
		req.Header.Set("Authorization", "Bearer segredo")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health stays public", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		repo.On("Ping", mock.Anything).Return(nil).Once()
		handler := newTestHandler(repo, opts)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("discovery stays public and reports the gate", func(t *testing.T) {
		handler := newTestHandler(new(MockCatalogRepository), opts)
		req := httptest.NewRequest(http.MethodGet, "/.well-known/mcp", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		auth := body["authentication"].(map[string]any)
		assert.Equal(t, true, auth["required"])
	})
}

func TestHealth(t *testing.T) {
	t.Run("healthy store", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		repo.On("Ping", mock.Anything).Return(nil).Once()
		handler := newTestHandler(repo, mcphttp.Options{})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "connected", body["database"])
	})

	t.Run("unreachable store", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		repo.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()
		handler := newTestHandler(repo, mcphttp.Options{})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body["status"])
	})
}

func TestSelfTest(t *testing.T) {
	repo := new(MockCatalogRepository)
	repo.On("SearchProducts", mock.Anything, mock.MatchedBy(func(q usecase.ProductQuery) bool {
		return q.Limit == 3
	})).Return([]domain.Product{}, nil).Once()
	handler := newTestHandler(repo, mcphttp.Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, usecase.ToolSearchProducts, body["teste"])
	resultado := body["resultado"].(map[string]any)
	assert.Equal(t, true, resultado["sucesso"])
}

func TestNotFound(t *testing.T) {
	handler := newTestHandler(new(MockCatalogRepository), mcphttp.Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nao-existe", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["endpoints"])
}

func TestStream(t *testing.T) {
	t.Run("handshake is emitted immediately", func(t *testing.T) {
		handler := newTestHandler(new(MockCatalogRepository), mcphttp.Options{KeepAliveInterval: time.Hour})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "event: handshake")
		assert.Contains(t, rec.Body.String(), mcphttp.ProtocolVersion)
	})

	t.Run("keep-alives follow until the client disconnects", func(t *testing.T) {
		handler := newTestHandler(new(MockCatalogRepository), mcphttp.Options{KeepAliveInterval: 5 * time.Millisecond})

		ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
		defer cancel()
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Contains(t, rec.Body.String(), ": keep-alive")
	})
}
