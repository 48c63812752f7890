package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// exchangeCols is the standard SELECT column list for scanExchanges.
const exchangeCols = `id, chat_id, prompt, output, images, created_at`

// Store persists exchanges in PostgreSQL. Images are stored as a JSONB
// array per row; cross-row flattening happens in Go to preserve the
// per-turn ordering.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates an exchange Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create inserts one exchange and fills in its generated ID and
// creation timestamp.
func (s *Store) Create(ctx context.Context, e *Exchange) error {
	if e.ChatID == "" {
		return fmt.Errorf("chat id is required")
	}

	images := e.Images
	if images == nil {
		images = []ImageRef{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return fmt.Errorf("encoding images: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO exchanges (chat_id, prompt, output, images)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		e.ChatID, e.Prompt, e.Output, imagesJSON,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting exchange: %w", err)
	}

	s.logger.Debug("created exchange",
		"id", e.ID, "chat_id", e.ChatID, "images", len(e.Images))
	return nil
}

// FindByChatID returns all exchanges for a chat ordered by creation
// time ascending, the replay order for history reconstruction.
func (s *Store) FindByChatID(ctx context.Context, chatID string) ([]*Exchange, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+exchangeCols+` FROM exchanges
		 WHERE chat_id = $1
		 ORDER BY created_at ASC, id ASC`,
		chatID)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer rows.Close()

	return scanExchanges(rows)
}

// ImageIDs returns every image id already persisted for a chat. The
// result seeds the exclusion set handed to the image search adapter.
func (s *Store) ImageIDs(ctx context.Context, chatID string) ([]string, error) {
	images, err := s.Images(ctx, chatID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ImageID)
	}
	return ids, nil
}

// Images returns the flattened image list for a chat, ordered by the
// turns that produced them.
func (s *Store) Images(ctx context.Context, chatID string) ([]ImageRef, error) {
	exchanges, err := s.FindByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var images []ImageRef
	for _, e := range exchanges {
		images = append(images, e.Images...)
	}
	return images, nil
}

// ResolveImages returns the stored ImageRefs matching the requested ids,
// in stored order. Ids with no match are silently absent from the
// result.
func (s *Store) ResolveImages(ctx context.Context, chatID string, ids []string) ([]ImageRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	all, err := s.Images(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var matched []ImageRef
	for _, img := range all {
		if wanted[img.ImageID] {
			matched = append(matched, img)
		}
	}
	return matched, nil
}

// scanExchanges reads exchange rows, decoding the images JSONB column.
func scanExchanges(rows pgx.Rows) ([]*Exchange, error) {
	var out []*Exchange
	for rows.Next() {
		var (
			e      Exchange
			images []byte
		)
		if err := rows.Scan(&e.ID, &e.ChatID, &e.Prompt, &e.Output, &images, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		if err := json.Unmarshal(images, &e.Images); err != nil {
			return nil, fmt.Errorf("decoding images for exchange %s: %w", e.ID, err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exchanges: %w", err)
	}
	return out, nil
}
