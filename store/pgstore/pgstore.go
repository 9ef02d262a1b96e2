// Package pgstore is the PostgreSQL-backed gateway: documents and signature
// assets live in two tables, with the normalized placement list stored as
// jsonb so any renderer can reconstruct the overlay. Schema management runs
// through embedded goose migrations.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"

	"github.com/wudi/signkit/asset"
	"github.com/wudi/signkit/gateway"
	"github.com/wudi/signkit/store/pgstore/migrations"
)

// Store implements gateway.Gateway over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Connect builds a pool from a DSN with sane defaults for a small service.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	return New(pool), nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Migrate applies the embedded goose migrations. It opens a short-lived
// database/sql connection because goose drives that interface, not pgx.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("pgstore: open for migrate: %w", err)
	}
	defer db.Close()
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("pgstore: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}

func encodePlacements(placements []asset.NormalizedPlacement) ([]byte, error) {
	if placements == nil {
		return nil, nil
	}
	return json.Marshal(placements)
}

func decodePlacements(data []byte) ([]asset.NormalizedPlacement, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var out []asset.NormalizedPlacement
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

const documentColumns = `id, owner_id, name, image_ref, is_signed, signed_image_ref, signature_data, created_at, updated_at`

func scanDocument(row pgx.Row) (*asset.Document, error) {
	var d asset.Document
	var placements []byte
	err := row.Scan(&d.ID, &d.OwnerID, &d.Name, &d.ImageRef, &d.IsSigned, &d.SignedImageRef, &placements, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if d.Placements, err = decodePlacements(placements); err != nil {
		return nil, fmt.Errorf("decode signature_data: %w", err)
	}
	return &d, nil
}

// documentErr distinguishes a missing document from one owned by someone
// else, so the gateway can answer NOT_FOUND vs FORBIDDEN precisely.
func (s *Store) documentErr(ctx context.Context, documentID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("document %s: %w: %w", documentID, gateway.ErrStorage, err)
	}
	if exists {
		return fmt.Errorf("document %s: %w", documentID, gateway.ErrForbidden)
	}
	return fmt.Errorf("document %s: %w", documentID, gateway.ErrNotFound)
}

func (s *Store) GetDocument(ctx context.Context, documentID, ownerID string) (*asset.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1 AND owner_id = $2`,
		documentID, ownerID)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.documentErr(ctx, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w: %w", gateway.ErrStorage, err)
	}
	return doc, nil
}

func (s *Store) StoreSignedDocument(ctx context.Context, documentID, ownerID string, signedImageRef *string, placements []asset.NormalizedPlacement) (*asset.SignedDocument, error) {
	data, err := encodePlacements(placements)
	if err != nil {
		return nil, fmt.Errorf("encode placements: %w: %w", gateway.ErrStorage, err)
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE documents
		SET is_signed = true, signed_image_ref = $3, signature_data = $4, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+documentColumns,
		documentID, ownerID, signedImageRef, data)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.documentErr(ctx, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("store signed document: %w: %w", gateway.ErrStorage, err)
	}
	return &asset.SignedDocument{Document: *doc}, nil
}

func (s *Store) ClearSignature(ctx context.Context, documentID, ownerID string) (*asset.Document, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE documents
		SET is_signed = false, signed_image_ref = NULL, signature_data = NULL, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+documentColumns,
		documentID, ownerID)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.documentErr(ctx, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("clear signature: %w: %w", gateway.ErrStorage, err)
	}
	return doc, nil
}

// CreateDocument inserts a scanned document; the scanning flow upstream of
// signing calls this.
func (s *Store) CreateDocument(ctx context.Context, ownerID, name, imageRef string) (*asset.Document, error) {
	if imageRef == "" {
		return nil, fmt.Errorf("image_ref is required: %w", gateway.ErrValidation)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO documents (owner_id, name, image_ref)
		VALUES ($1, $2, $3)
		RETURNING `+documentColumns,
		ownerID, name, imageRef)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("create document: %w: %w", gateway.ErrStorage, err)
	}
	return doc, nil
}

const assetColumns = `id, owner_id, name, signature_payload, created_at, updated_at`

func scanAsset(row pgx.Row) (*asset.SignatureAsset, error) {
	var a asset.SignatureAsset
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Payload, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) assetErr(ctx context.Context, assetID string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM signature_assets WHERE id = $1)`, assetID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("signature asset %s: %w: %w", assetID, gateway.ErrStorage, err)
	}
	if exists {
		return fmt.Errorf("signature asset %s: %w", assetID, gateway.ErrForbidden)
	}
	return fmt.Errorf("signature asset %s: %w", assetID, gateway.ErrNotFound)
}

func (s *Store) ListSignatureAssets(ctx context.Context, ownerID string) ([]asset.SignatureAsset, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+assetColumns+` FROM signature_assets WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list signature assets: %w: %w", gateway.ErrStorage, err)
	}
	defer rows.Close()

	var out []asset.SignatureAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signature asset: %w: %w", gateway.ErrStorage, err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list signature assets: %w: %w", gateway.ErrStorage, err)
	}
	return out, nil
}

func (s *Store) GetSignatureAsset(ctx context.Context, assetID, ownerID string) (*asset.SignatureAsset, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM signature_assets WHERE id = $1 AND owner_id = $2`,
		assetID, ownerID)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.assetErr(ctx, assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("get signature asset: %w: %w", gateway.ErrStorage, err)
	}
	return a, nil
}

func (s *Store) CreateSignatureAsset(ctx context.Context, ownerID, name string, payload []byte) (*asset.SignatureAsset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("signature name is required: %w", gateway.ErrValidation)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("signature payload is required: %w", gateway.ErrValidation)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO signature_assets (owner_id, name, signature_payload)
		VALUES ($1, $2, $3)
		RETURNING `+assetColumns,
		ownerID, name, payload)
	a, err := scanAsset(row)
	if err != nil {
		return nil, fmt.Errorf("create signature asset: %w: %w", gateway.ErrStorage, err)
	}
	return a, nil
}

func (s *Store) RenameSignatureAsset(ctx context.Context, assetID, ownerID, name string) (*asset.SignatureAsset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("signature name is required: %w", gateway.ErrValidation)
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE signature_assets SET name = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING `+assetColumns,
		assetID, ownerID, name)
	a, err := scanAsset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.assetErr(ctx, assetID)
	}
	if err != nil {
		return nil, fmt.Errorf("rename signature asset: %w: %w", gateway.ErrStorage, err)
	}
	return a, nil
}

func (s *Store) DeleteSignatureAsset(ctx context.Context, assetID, ownerID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM signature_assets WHERE id = $1 AND owner_id = $2`,
		assetID, ownerID)
	if err != nil {
		return fmt.Errorf("delete signature asset: %w: %w", gateway.ErrStorage, err)
	}
	if tag.RowsAffected() == 0 {
		return s.assetErr(ctx, assetID)
	}
	return nil
}

var _ gateway.Gateway = (*Store)(nil)
