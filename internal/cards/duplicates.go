package cards

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/archiletras/fichas-backend/internal/platform/logger"
	"github.com/archiletras/fichas-backend/internal/types"
)

// Match modes for duplicate detection. Exact compares the normalized natural
// key; loose relaxes to a substring match. The key heuristics over- and
// under-match either way, so the mode is deployment policy, not algorithm.
const (
	MatchModeExact = "exact"
	MatchModeLoose = "loose"
)

const duplicateLimit = 5

// DuplicateDetector runs the pre-create duplicate check against the document
// store. Read-only; used only on the create-without-explicit-id path.
type DuplicateDetector struct {
	db   *gorm.DB
	log  *logger.Logger
	mode string
}

func NewDuplicateDetector(db *gorm.DB, baseLog *logger.Logger, mode string) *DuplicateDetector {
	if mode != MatchModeLoose {
		mode = MatchModeExact
	}
	return &DuplicateDetector{
		db:   db,
		log:  baseLog.With("service", "DuplicateDetector"),
		mode: mode,
	}
}

// FindPossibleDuplicates returns up to five existing ficha ids whose natural
// key matches the candidate payload, case- and whitespace-insensitively. A
// blank natural key yields no candidates rather than an error.
func (d *DuplicateDetector) FindPossibleDuplicates(ctx context.Context, tag string, payload map[string]any) ([]string, error) {
	sub, err := ForTag(tag)
	if err != nil {
		return nil, err
	}
	key, ok := sub.NaturalKey(payload)
	if !ok {
		return nil, nil
	}

	q := d.db.WithContext(ctx).
		Model(&types.Ficha{}).
		Where("subtype = ?", tag)

	for _, part := range key {
		candidate := normalizeKey(part.Value)
		column := "attrs->>'" + part.Field + "'"
		if part.Field == "title" {
			column = "title"
		}
		normalized := fmt.Sprintf(`lower(regexp_replace(%s, '\s+', ' ', 'g'))`, column)
		if d.mode == MatchModeLoose {
			q = q.Where(normalized+" LIKE ?", "%"+escapeLike(candidate)+"%")
		} else {
			q = q.Where(normalized+" = ?", candidate)
		}
	}

	var ids []string
	if err := q.Order("created_at ASC").
		Limit(duplicateLimit).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("duplicate lookup: %w", err)
	}
	return ids, nil
}

func normalizeKey(s string) string {
	return strings.ToLower(CollapseWhitespace(s))
}

// escapeLike escapes LIKE pattern metacharacters so a candidate value is
// matched literally, never as a wildcard.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
