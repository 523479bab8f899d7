package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxConns          = 10
	minConns          = 1
	maxConnLifetime   = 60 * time.Minute
	maxConnIdleTime   = 10 * time.Minute
	healthCheckPeriod = time.Minute
	connectTimeout    = 5 * time.Second
	statementTimeout  = 30 * time.Second
	pingTimeout       = 2 * time.Second
)

// NewPool opens and pings a pgx pool.
func NewPool(ctx context.Context, dsn string, log *slog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnLifetime = maxConnLifetime
	cfg.MaxConnIdleTime = maxConnIdleTime
	cfg.HealthCheckPeriod = healthCheckPeriod
	cfg.ConnConfig.ConnectTimeout = connectTimeout
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, fmt.Sprintf("SET statement_timeout = '%ds'", int(statementTimeout.Seconds())))
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, pingTimeout)
	defer cancelPing()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if log != nil {
		log.Info("postgres pool connected", "max_conns", cfg.MaxConns)
	}

	return pool, nil
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// notFound maps missing rows and malformed uuids to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) SourceByCode(ctx context.Context, code string) (*Source, error) {
	var src Source
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, code, name, base_url FROM sources WHERE code = $1`, code,
	).Scan(&src.ID, &src.Code, &src.Name, &src.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", code, notFound(err))
	}
	return &src, nil
}

// CreateSource returns the existing row when the code is already taken.
func (s *PostgresStore) CreateSource(ctx context.Context, src *Source) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sources (code, name, base_url, is_active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		RETURNING id::text`,
		src.Code, src.Name, src.BaseURL,
	).Scan(&src.ID)
	if err != nil {
		return fmt.Errorf("create source %s: %w", src.Code, err)
	}
	return nil
}

const comicColumns = `id::text, title, slug, cover_url, description, status, type, rating,
	genres, author, artist, COALESCE(source_id::text, ''), source_slug, source_url, updated_at`

func scanComic(row pgx.Row) (*Comic, error) {
	var c Comic
	err := row.Scan(&c.ID, &c.Title, &c.Slug, &c.CoverURL, &c.Description, &c.Status, &c.Type,
		&c.Rating, &c.Genres, &c.Author, &c.Artist, &c.SourceID, &c.SourceSlug, &c.SourceURL, &c.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *PostgresStore) ComicByID(ctx context.Context, id string) (*Comic, error) {
	c, err := scanComic(s.pool.QueryRow(ctx, `SELECT `+comicColumns+` FROM komik WHERE id = $1::uuid`, id))
	if err != nil {
		return nil, fmt.Errorf("comic %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) ComicByTitle(ctx context.Context, title string) (*Comic, error) {
	c, err := scanComic(s.pool.QueryRow(ctx,
		`SELECT `+comicColumns+` FROM komik WHERE lower(title) = lower($1) ORDER BY created_at LIMIT 1`, title))
	if err != nil {
		return nil, fmt.Errorf("comic %q: %w", title, err)
	}
	return c, nil
}

func (s *PostgresStore) UpsertComic(ctx context.Context, c *Comic) error {
	genres := c.Genres
	if genres == nil {
		genres = []string{}
	}

	if c.ID != "" {
		tag, err := s.pool.Exec(ctx, `
			UPDATE komik SET title = $2, cover_url = $3, description = $4, status = $5, type = $6,
				rating = $7, genres = $8, author = $9, artist = $10, updated_at = now()
			WHERE id = $1::uuid`,
			c.ID, c.Title, c.CoverURL, c.Description, c.Status, c.Type, c.Rating, genres, c.Author, c.Artist)
		if err != nil {
			return fmt.Errorf("update comic %s: %w", c.ID, notFound(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update comic %s: %w", c.ID, ErrNotFound)
		}
		return nil
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO komik (title, slug, cover_url, description, status, type, rating, genres,
			author, artist, source_id, source_slug, source_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::uuid, $12, $13)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title, cover_url = EXCLUDED.cover_url, description = EXCLUDED.description,
			status = EXCLUDED.status, type = EXCLUDED.type, rating = EXCLUDED.rating,
			genres = EXCLUDED.genres, author = EXCLUDED.author, artist = EXCLUDED.artist,
			updated_at = now()
		RETURNING id::text`,
		c.Title, c.Slug, c.CoverURL, c.Description, c.Status, c.Type, c.Rating, genres,
		c.Author, c.Artist, c.SourceID, c.SourceSlug, c.SourceURL,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("upsert comic %s: %w", c.Slug, err)
	}
	return nil
}

func (s *PostgresStore) UpsertChapter(ctx context.Context, ch *Chapter) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO chapters (komik_id, chapter_number, title, source_url, source_chapter_id)
		VALUES ($1::uuid, $2, $3, $4, $5)
		ON CONFLICT (komik_id, chapter_number) DO UPDATE SET
			title = EXCLUDED.title, source_url = EXCLUDED.source_url,
			source_chapter_id = EXCLUDED.source_chapter_id, updated_at = now()
		RETURNING id::text`,
		ch.ComicID, ch.Number, ch.Title, ch.SourceURL, ch.SourceChapterID,
	).Scan(&ch.ID)
	if err != nil {
		return fmt.Errorf("upsert chapter %v of %s: %w", ch.Number, ch.ComicID, notFound(err))
	}
	return nil
}

func (s *PostgresStore) ChapterSource(ctx context.Context, chapterID string) (*ChapterSource, error) {
	var cs ChapterSource
	err := s.pool.QueryRow(ctx, `
		SELECT c.id::text, c.komik_id::text, c.chapter_number, c.source_url,
			COALESCE(s.id::text, ''), COALESCE(s.code, '')
		FROM chapters c
		JOIN komik k ON k.id = c.komik_id
		LEFT JOIN sources s ON s.id = k.source_id
		WHERE c.id = $1::uuid`, chapterID,
	).Scan(&cs.ChapterID, &cs.ComicID, &cs.ChapterNumber, &cs.SourceURL, &cs.SourceID, &cs.SourceCode)
	if err != nil {
		return nil, fmt.Errorf("chapter %s: %w", chapterID, notFound(err))
	}
	return &cs, nil
}

func (s *PostgresStore) CachedPages(ctx context.Context, chapterID string) ([]CachedPage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, chapter_id::text, page_number, source_image_url, cached_image_url, cached_at, expires_at
		FROM chapter_pages WHERE chapter_id = $1::uuid ORDER BY page_number`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("cached pages %s: %w", chapterID, err)
	}

	pages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (CachedPage, error) {
		var p CachedPage
		err := row.Scan(&p.ID, &p.ChapterID, &p.PageNumber, &p.SourceImageURL, &p.CachedImageURL, &p.CachedAt, &p.ExpiresAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("cached pages %s: %w", chapterID, err)
	}
	return pages, nil
}

func (s *PostgresStore) DeleteCachedPages(ctx context.Context, chapterID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chapter_pages WHERE chapter_id = $1::uuid`, chapterID)
	if err != nil {
		return 0, fmt.Errorf("delete cached pages %s: %w", chapterID, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertCachedPages(ctx context.Context, pages []CachedPage) error {
	if len(pages) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range pages {
		batch.Queue(`
			INSERT INTO chapter_pages (chapter_id, page_number, source_image_url, cached_image_url, cached_at, expires_at)
			VALUES ($1::uuid, $2, $3, $4, $5, $6)
			ON CONFLICT (chapter_id, page_number) DO UPDATE SET
				source_image_url = EXCLUDED.source_image_url, cached_image_url = EXCLUDED.cached_image_url,
				cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
			p.ChapterID, p.PageNumber, p.SourceImageURL, p.CachedImageURL, p.CachedAt, p.ExpiresAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	for _, p := range pages {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert cached page %d of %s: %w", p.PageNumber, p.ChapterID, err)
		}
	}
	return nil
}

func (s *PostgresStore) ExpiredPages(ctx context.Context, now time.Time, limit int) ([]ExpiredPage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id::text, p.chapter_id::text, c.komik_id::text, c.chapter_number
		FROM chapter_pages p
		JOIN chapters c ON c.id = p.chapter_id
		WHERE p.expires_at <= $1
		ORDER BY p.expires_at, p.chapter_id, p.page_number
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("expired pages: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ExpiredPage, error) {
		var e ExpiredPage
		err := row.Scan(&e.ID, &e.ChapterID, &e.ComicID, &e.ChapterNumber)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("expired pages: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteCachedPagesByID(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM chapter_pages WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete cached pages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertScrapeLog(ctx context.Context, l ScrapeLog) error {
	created := l.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scrape_logs (source_id, action, target_url, status, error_message, actor, created_at)
		VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6, $7)`,
		l.SourceID, l.Action, l.TargetURL, l.Status, l.ErrorMessage, l.Actor, created)
	if err != nil {
		return fmt.Errorf("insert scrape log: %w", err)
	}
	return nil
}
