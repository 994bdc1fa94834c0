package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/archiletras/fichas-backend/internal/cards"
	"github.com/archiletras/fichas-backend/internal/platform/logger"
	"github.com/archiletras/fichas-backend/internal/platform/neo4jdb"
	"github.com/archiletras/fichas-backend/internal/types"
)

// Syncer writes the graph projection of a validated ficha. Implemented here on
// Neo4j; the lifecycle depends only on this interface.
type Syncer interface {
	Sync(ctx context.Context, f *types.Ficha) error
	DeleteProjection(ctx context.Context, fichaID uuid.UUID) error
}

type fichaGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewFichaGraph(client *neo4jdb.Client, baseLog *logger.Logger) Syncer {
	return &fichaGraph{
		client: client,
		log:    baseLog.With("service", "FichaGraph"),
	}
}

// Sync replaces the ficha's projection: every node tagged with the ficha id is
// deleted, then the full node/edge set is re-derived and MERGEd by natural
// key. Delete and recreate run in one write transaction, so a concurrent
// reader sees the old projection or the new one, never a mix.
func (g *fichaGraph) Sync(ctx context.Context, f *types.Ficha) error {
	if g == nil || g.client == nil || g.client.Driver == nil {
		return nil
	}
	if f == nil || f.ID == uuid.Nil {
		return fmt.Errorf("ficha graph sync: missing ficha")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sub, err := cards.ForTag(f.Subtype)
	if err != nil {
		return err
	}
	nodes, edges, err := sub.Project(f)
	if err != nil {
		return fmt.Errorf("ficha graph sync: derive projection: %w", err)
	}

	fichaID := f.ID.String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := runConsume(ctx, tx,
			`MATCH (n {fichaId: $fichaId}) DETACH DELETE n`,
			map[string]any{"fichaId": fichaID}); err != nil {
			return nil, err
		}

		for i, n := range nodes {
			query, params := mergeNodeQuery(i, n, fichaID, now)
			if err := runConsume(ctx, tx, query, params); err != nil {
				return nil, err
			}
		}

		for _, e := range edges {
			if e.From < 0 || e.From >= len(nodes) || e.To < 0 || e.To >= len(nodes) {
				continue
			}
			query, params := mergeEdgeQuery(nodes[e.From], nodes[e.To], e.Type, fichaID, now)
			if err := runConsume(ctx, tx, query, params); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	g.log.Debug("projection synced",
		"ficha_id", fichaID,
		"subtype", f.Subtype,
		"nodes", len(nodes),
		"edges", len(edges),
	)
	return nil
}

// DeleteProjection removes every node tagged with the ficha id. Runs when a
// validated card is reopened for editing.
func (g *fichaGraph) DeleteProjection(ctx context.Context, fichaID uuid.UUID) error {
	if g == nil || g.client == nil || g.client.Driver == nil {
		return nil
	}
	if fichaID == uuid.Nil {
		return fmt.Errorf("ficha graph delete: missing ficha id")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := g.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, runConsume(ctx, tx,
			`MATCH (n {fichaId: $fichaId}) DETACH DELETE n`,
			map[string]any{"fichaId": fichaID.String()})
	})
	return err
}

func runConsume(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) error {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// mergeNodeQuery builds a MERGE on the node's natural key plus fichaId, then
// overwrites the remaining properties. Repeated syncs of unchanged input are
// therefore no-ops node-count-wise.
func mergeNodeQuery(idx int, n cards.Node, fichaID, syncedAt string) (string, map[string]any) {
	params := map[string]any{"fichaId": fichaID, "syncedAt": syncedAt}

	mergeParts := []string{"fichaId: $fichaId"}
	for _, key := range sortedKeys(n.Merge) {
		pname := fmt.Sprintf("n%d_k_%s", idx, key)
		params[pname] = n.Merge[key]
		mergeParts = append(mergeParts, fmt.Sprintf("%s: $%s", key, pname))
	}

	setParts := []string{"n.syncedAt = $syncedAt"}
	for _, key := range sortedKeys(n.Props) {
		pname := fmt.Sprintf("n%d_p_%s", idx, key)
		params[pname] = n.Props[key]
		setParts = append(setParts, fmt.Sprintf("n.%s = $%s", key, pname))
	}

	query := fmt.Sprintf("MERGE (n:%s {%s})\nSET %s",
		n.Label, strings.Join(mergeParts, ", "), strings.Join(setParts, ",\n    "))
	return query, params
}

func mergeEdgeQuery(from, to cards.Node, edgeType, fichaID, syncedAt string) (string, map[string]any) {
	params := map[string]any{"fichaId": fichaID, "syncedAt": syncedAt}

	fromParts := []string{"fichaId: $fichaId"}
	for _, key := range sortedKeys(from.Merge) {
		pname := "a_" + key
		params[pname] = from.Merge[key]
		fromParts = append(fromParts, fmt.Sprintf("%s: $%s", key, pname))
	}
	toParts := []string{"fichaId: $fichaId"}
	for _, key := range sortedKeys(to.Merge) {
		pname := "b_" + key
		params[pname] = to.Merge[key]
		toParts = append(toParts, fmt.Sprintf("%s: $%s", key, pname))
	}

	query := fmt.Sprintf(`MATCH (a:%s {%s})
MATCH (b:%s {%s})
MERGE (a)-[e:%s]->(b)
SET e.syncedAt = $syncedAt`,
		from.Label, strings.Join(fromParts, ", "),
		to.Label, strings.Join(toParts, ", "),
		edgeType)
	return query, params
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
