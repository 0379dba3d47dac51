package domain

// Product is a read-only projection of a row in the hosted catalog store.
// Prices arrive as raw text: the upstream table allows NULL and free-form
// values there, so coercion happens in application code (see internal/format)
// rather than at scan time.
type Product struct {
	ID          string `gorm:"column:id;primaryKey" json:"id"`
	Name        string `gorm:"column:nome" json:"nome"`
	Description string `gorm:"column:descricao" json:"descricao"`
	Price       string `gorm:"column:preco" json:"preco"`
	ImageURL    string `gorm:"column:imagem_url" json:"imagem_url"`
	Available   bool   `gorm:"column:disponivel" json:"disponivel"`
	SortOrder   int    `gorm:"column:ordem" json:"ordem"`
	CategoryID  string `gorm:"column:categoria_id" json:"categoria_id"`
}

// TableName maps Product to the Portuguese table name used by the store.
func (Product) TableName() string { return "produtos" }

// Category groups products within a fixed parent catalog.
type Category struct {
	ID        string `gorm:"column:id;primaryKey" json:"id"`
	Name      string `gorm:"column:nome" json:"nome"`
	SortOrder int    `gorm:"column:ordem" json:"ordem"`
	CatalogID string `gorm:"column:catalogo_id" json:"catalogo_id"`
}

func (Category) TableName() string { return "categorias" }

// CategoryCount is the result row of the per-category availability count.
type CategoryCount struct {
	CategoryID string `gorm:"column:categoria_id"`
	Count      int64  `gorm:"column:count"`
}

// StoreInfo is the static vendor sheet returned by the informacoes_loja tool.
// It is never sourced from the data store; defaults live in configs and may be
// overridden by an operator-provided YAML file.
type StoreInfo struct {
	Name         string   `yaml:"nome" json:"nome"`
	Address      string   `yaml:"endereco" json:"endereco"`
	Hours        string   `yaml:"horario" json:"horario"`
	Phone        string   `yaml:"telefone" json:"telefone"`
	CoverageArea []string `yaml:"area_entrega" json:"area_entrega"`
	Description  string   `yaml:"descricao" json:"descricao"`
}
