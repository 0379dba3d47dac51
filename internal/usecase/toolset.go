package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/cardapiodigital/cardapio-mcp/internal/format"
)

// Tool names exposed over tools/list and tools/call.
const (
	ToolSearchProducts = "buscar_produtos"
	ToolListCategories = "listar_categorias"
	ToolStoreInfo      = "informacoes_loja"
)

// toolHandler executes one tool against already-decoded arguments and returns
// the response payload. Handlers never return an error: every failure is
// folded into the payload as {sucesso:false, erro:...}.
type toolHandler func(ctx context.Context, args map[string]any) map[string]any

type registeredTool struct {
	def     mcp.Tool
	handler toolHandler
}

// Toolset is the fixed tool registry: three tools, built once at startup,
// immutable afterwards.
type Toolset struct {
	search     *SearchProductsUseCase
	categories *ListCategoriesUseCase
	store      *StoreInfoUseCase
	catalogURL string
	logger     *slog.Logger

	tools map[string]registeredTool
	order []string
}

// NewToolset wires the three catalog use cases into the registry.
// catalogURL is the public menu URL included in every product response.
func NewToolset(search *SearchProductsUseCase, categories *ListCategoriesUseCase, store *StoreInfoUseCase, catalogURL string, logger *slog.Logger) *Toolset {
	ts := &Toolset{
		search:     search,
		categories: categories,
		store:      store,
		catalogURL: catalogURL,
		logger:     logger.With("component", "toolset"),
	}
	ts.tools = map[string]registeredTool{
		ToolSearchProducts: {def: searchToolDefinition(), handler: ts.handleSearchProducts},
		ToolListCategories: {def: listToolDefinition(), handler: ts.handleListCategories},
		ToolStoreInfo:      {def: storeInfoToolDefinition(), handler: ts.handleStoreInfo},
	}
	ts.order = []string{ToolSearchProducts, ToolListCategories, ToolStoreInfo}
	return ts
}

func searchToolDefinition() mcp.Tool {
	return mcp.NewTool(ToolSearchProducts,
		mcp.WithDescription("Busca produtos do cardápio por nome, categoria e disponibilidade."),
		mcp.WithString("termo_busca",
			mcp.Description("Termo para busca parcial no nome do produto (sem distinção de maiúsculas)."),
		),
		mcp.WithString("categoria_id",
			mcp.Description("Filtra por uma categoria específica."),
		),
		mcp.WithBoolean("apenas_disponiveis",
			mcp.Description("Quando verdadeiro, retorna somente produtos disponíveis."),
			mcp.DefaultBool(true),
		),
		mcp.WithNumber("limite",
			mcp.Description("Número máximo de produtos retornados."),
			mcp.DefaultNumber(DefaultSearchLimit),
			mcp.Min(MinSearchLimit),
			mcp.Max(MaxSearchLimit),
		),
	)
}

func listToolDefinition() mcp.Tool {
	return mcp.NewTool(ToolListCategories,
		mcp.WithDescription("Lista as categorias do cardápio em ordem de exibição."),
		mcp.WithBoolean("incluir_contagem",
			mcp.Description("Quando verdadeiro, inclui a contagem de produtos disponíveis por categoria."),
			mcp.DefaultBool(true),
		),
	)
}

func storeInfoToolDefinition() mcp.Tool {
	return mcp.NewTool(ToolStoreInfo,
		mcp.WithDescription("Retorna endereço, horário de funcionamento e área de entrega da loja."),
	)
}

// Definitions returns the tool definitions in registration order, for
// tools/list.
func (ts *Toolset) Definitions() []mcp.Tool {
	defs := make([]mcp.Tool, 0, len(ts.order))
	for _, name := range ts.order {
		defs = append(defs, ts.tools[name].def)
	}
	return defs
}

// Call runs the named tool. The only error it can return is ErrToolNotFound;
// every other failure is encoded inside the result payload.
func (ts *Toolset) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	tool, ok := ts.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool '%s' not found: %w", name, ErrToolNotFound)
	}

	start := time.Now()
	payload := tool.handler(ctx, args)
	payload["tempo_execucao"] = elapsedString(start)

	ts.logger.Info("Tool executed.",
		slog.String("tool", name),
		slog.Any("sucesso", payload["sucesso"]),
		slog.String("tempo_execucao", payload["tempo_execucao"].(string)))

	body, err := json.Marshal(payload)
	if err != nil {
		// Payloads are built from plain maps and slices; this is unreachable
		// short of a programming error.
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

// elapsedString renders wall-clock time since start as "<n>ms".
func elapsedString(start time.Time) string {
	return fmt.Sprintf("%dms", time.Since(start).Milliseconds())
}

func (ts *Toolset) handleSearchProducts(ctx context.Context, args map[string]any) map[string]any {
	limit := DefaultSearchLimit
	if v, ok := args["limite"]; ok && v != nil {
		limit = cast.ToInt(v)
	}
	p := SearchParams{
		Term:          format.NormalizeText(args["termo_busca"]),
		CategoryID:    format.NormalizeText(args["categoria_id"]),
		OnlyAvailable: boolArg(args, "apenas_disponiveis", true),
		Limit:         limit,
	}

	views, err := ts.search.Execute(ctx, p)
	if err != nil {
		return failurePayload(err, map[string]any{
			"produtos":          []ProductView{},
			"total":             0,
			"mensagem":          "Erro ao buscar produtos no cardápio.",
			"cardapio_completo": ts.catalogURL,
		})
	}

	mensagem := fmt.Sprintf("%d produto(s) encontrado(s).", len(views))
	if len(views) == 0 {
		mensagem = "Nenhum produto encontrado para os filtros informados."
	}
	return successPayload(map[string]any{
		"produtos":          views,
		"total":             len(views),
		"mensagem":          mensagem,
		"cardapio_completo": ts.catalogURL,
	})
}

func (ts *Toolset) handleListCategories(ctx context.Context, args map[string]any) map[string]any {
	p := ListParams{IncludeCount: boolArg(args, "incluir_contagem", true)}

	views, err := ts.categories.Execute(ctx, p)
	if err != nil {
		return failurePayload(err, map[string]any{
			"categorias": []CategoryView{},
			"total":      0,
		})
	}
	return successPayload(map[string]any{
		"categorias": views,
		"total":      len(views),
	})
}

func (ts *Toolset) handleStoreInfo(ctx context.Context, _ map[string]any) map[string]any {
	info := ts.store.Execute(ctx)
	return successPayload(map[string]any{
		"loja":              info,
		"cardapio_completo": ts.catalogURL,
	})
}

// successPayload and failurePayload are the single formatting point for tool
// results, so the success and failure shapes cannot drift between handlers.
func successPayload(fields map[string]any) map[string]any {
	payload := map[string]any{"sucesso": true}
	for k, v := range fields {
		payload[k] = v
	}
	return payload
}

func failurePayload(err error, fields map[string]any) map[string]any {
	payload := map[string]any{
		"sucesso": false,
		"erro":    err.Error(),
	}
	for k, v := range fields {
		payload[k] = v
	}
	return payload
}

// boolArg reads an optional boolean argument, falling back to def when the
// key is absent or not interpretable as a boolean.
func boolArg(args map[string]any, key string, def bool) bool {
	v, ok := args[key]
	if !ok || v == nil {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}
