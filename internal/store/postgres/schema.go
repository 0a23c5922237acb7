package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlArchive = `
CREATE TABLE IF NOT EXISTS caption_archive (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    kind        TEXT         NOT NULL CHECK (kind IN ('line', 'summary')),
    text        TEXT         NOT NULL,
    at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_caption_archive_session_id
    ON caption_archive (session_id, id);

CREATE INDEX IF NOT EXISTS idx_caption_archive_fts
    ON caption_archive USING GIN (to_tsvector('english', text));
`

// Migrate creates the archive table and its indexes if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlArchive); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
