package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-rag/internal/config"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
)

var ErrMissingDatabaseURL = errors.New("database url is not configured")

// Collection is a named set of embeddings.
type Collection struct {
	bun.BaseModel `bun:"table:langchain_pg_collection,alias:c"`
	UUID          string         `bun:"uuid,pk,type:uuid"`
	Name          string         `bun:"name,notnull,unique"`
	CMetadata     map[string]any `bun:"cmetadata,type:jsonb"`
}

// Document is one embedded chunk.
type Document struct {
	bun.BaseModel `bun:"table:langchain_pg_embedding,alias:e"`
	ID            string          `bun:"id,pk"`
	CollectionID  string          `bun:"collection_id,type:uuid,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector,notnull"`
	Document      string          `bun:"document"`
	CMetadata     map[string]any  `bun:"cmetadata,type:jsonb"`
}

type searchRow struct {
	Document  string         `bun:"document"`
	CMetadata map[string]any `bun:"cmetadata"`
	Distance  float64        `bun:"distance"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens URL-style DSNs with pgdriver and key=value DSNs with lib/pq,
// which pgdriver cannot parse.
func ConnectDB(dbConfig *config.DatabaseConfig) (sqldb *sql.DB, err error) {
	dsn := strings.TrimSpace(dbConfig.URL)
	if dsn == "" {
		return nil, ErrMissingDatabaseURL
	}
	if !isURLDSN(dsn) {
		return sql.Open("postgres", dsn)
	}

	// pgdriver.WithDSN panics on a malformed DSN
	defer func() {
		if r := recover(); r != nil {
			sqldb, err = nil, fmt.Errorf("invalid database url: %v", r)
		}
	}()
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), nil
}

func isURLDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// InitDB creates the vector extension and both tables if missing.
func InitDB(ctx context.Context, db bun.IDB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := createCollectionTable(db).Exec(ctx); err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}
	if _, err := createEmbeddingTable(db).Exec(ctx); err != nil {
		return fmt.Errorf("create embedding table: %w", err)
	}
	return nil
}

func createCollectionTable(db bun.IDB) *bun.CreateTableQuery {
	return db.NewCreateTable().Model((*Collection)(nil)).IfNotExists()
}

// Dropping a collection row drops its embeddings.
func createEmbeddingTable(db bun.IDB) *bun.CreateTableQuery {
	return db.NewCreateTable().Model((*Document)(nil)).
		IfNotExists().
		ForeignKey(`("collection_id") REFERENCES "langchain_pg_collection" ("uuid") ON DELETE CASCADE`)
}

func deleteCollection(db bun.IDB, name string) *bun.DeleteQuery {
	return db.NewDelete().Model((*Collection)(nil)).Where("name = ?", name)
}

func selectCollection(db bun.IDB, name string, dest *Collection) *bun.SelectQuery {
	return db.NewSelect().Model(dest).Where("name = ?", name).Limit(1)
}

func insertDocuments(db bun.IDB, rows *[]Document) *bun.InsertQuery {
	return db.NewInsert().Model(rows)
}

// nearestDocuments orders the collection's chunks by cosine distance to vector.
func nearestDocuments(db bun.IDB, collectionID string, vector []float32, k int) *bun.SelectQuery {
	return db.NewSelect().
		Model((*Document)(nil)).
		Column("document", "cmetadata").
		ColumnExpr("embedding <=> ? AS distance", pgvector.NewVector(vector)).
		Where("collection_id = ?", collectionID).
		OrderExpr("distance").
		Limit(k)
}

// Store is a pgvector-backed collection bound to one name and one embedding model.
type Store struct {
	db             *bun.DB
	embedder       embeddings.Embedder
	name           string
	embeddingModel string
	collection     *Collection
}

var _ vectorstores.VectorStore = (*Store)(nil)

// Open connects and verifies the server is reachable. It issues no DDL;
// Recreate creates the schema.
func Open(ctx context.Context, dbConfig *config.DatabaseConfig, name, embeddingModel string, embedder embeddings.Embedder) (*Store, error) {
	sqldb, err := ConnectDB(dbConfig)
	if err != nil {
		return nil, err
	}
	return open(ctx, sqldb, dbConfig.Debug, name, embeddingModel, embedder)
}

func open(ctx context.Context, sqldb *sql.DB, debug bool, name, embeddingModel string, embedder embeddings.Embedder) (*Store, error) {
	db := NewDB(sqldb, debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db, embedder: embedder, name: name, embeddingModel: embeddingModel}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Recreate makes sure the schema exists, then drops the named collection with
// all its embeddings and creates it again, recording the embedding model.
// Other collections are left alone.
func (s *Store) Recreate(ctx context.Context) error {
	if err := InitDB(ctx, s.db); err != nil {
		return err
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	row := &Collection{
		UUID:      id,
		Name:      s.name,
		CMetadata: map[string]any{models.MetaEmbeddingModel: s.embeddingModel},
	}
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := deleteCollection(tx, s.name).Exec(ctx); err != nil {
			return fmt.Errorf("drop collection %s: %w", s.name, err)
		}
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("create collection %s: %w", s.name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.collection = row
	log.Debug().Str("collection", s.name).Str("uuid", id).Msg("Recreated collection")
	return nil
}

func (s *Store) loadCollection(ctx context.Context) (*Collection, error) {
	if s.collection != nil {
		return s.collection, nil
	}
	row := new(Collection)
	err := selectCollection(s.db, s.name, row).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrCollectionNotFound, s.name)
	}
	if err != nil {
		return nil, err
	}
	s.collection = row
	return row, nil
}

// AddDocuments embeds the documents in one call and inserts them in one statement.
func (s *Store) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	opts := parseOptions(options)
	embedder := s.embedder
	if opts.Embedder != nil {
		embedder = opts.Embedder
	}

	collection, err := s.loadCollection(ctx)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	rows := make([]Document, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		id, err := helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
		ids[i] = id
		meta := make(map[string]any, len(doc.Metadata)+1)
		for k, v := range doc.Metadata {
			meta[k] = v
		}
		meta[models.MetaEmbeddingModel] = s.embeddingModel
		rows[i] = Document{
			ID:           id,
			CollectionID: collection.UUID,
			Embedding:    pgvector.NewVector(vectors[i]),
			Document:     doc.PageContent,
			CMetadata:    meta,
		}
	}

	if _, err := insertDocuments(s.db, &rows).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert embeddings: %w", err)
	}
	return ids, nil
}

// SimilaritySearch returns the numDocuments nearest chunks by cosine distance,
// closest first. Score is 1 - distance.
func (s *Store) SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts := parseOptions(options)
	embedder := s.embedder
	if opts.Embedder != nil {
		embedder = opts.Embedder
	}

	collection, err := s.loadCollection(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkEmbeddingModel(collection.CMetadata, s.embeddingModel); err != nil {
		return nil, err
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var rows []searchRow
	err = nearestDocuments(s.db, collection.UUID, vector, numDocuments).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return toDocuments(rows, opts.ScoreThreshold), nil
}

func toDocuments(rows []searchRow, threshold float32) []schema.Document {
	docs := make([]schema.Document, 0, len(rows))
	for _, r := range rows {
		score := float32(1 - r.Distance)
		if threshold > 0 && score < threshold {
			continue
		}
		docs = append(docs, schema.Document{PageContent: r.Document, Metadata: r.CMetadata, Score: score})
	}
	return docs
}

func checkEmbeddingModel(meta map[string]any, want string) error {
	got, _ := meta[models.MetaEmbeddingModel].(string)
	if got == "" || got == want {
		return nil
	}
	return fmt.Errorf("%w: stored %q, configured %q", models.ErrEmbeddingModelMismatch, got, want)
}

func parseOptions(options []vectorstores.Option) vectorstores.Options {
	var opts vectorstores.Options
	for _, o := range options {
		o(&opts)
	}
	return opts
}
