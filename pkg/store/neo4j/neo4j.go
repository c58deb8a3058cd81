// Package neo4j implements the property-graph store on Neo4j. Entities
// are (:Entity) nodes keyed by canonical id; relationship types are
// free-text labels sanitized once at this write boundary, since Cypher
// cannot parameterize relationship types.
package neo4j

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/relaygraph/relaygraph/pkg/identity"
	"github.com/relaygraph/relaygraph/pkg/store"
	"github.com/relaygraph/relaygraph/pkg/types"
)

const fulltextIndexName = "entity_text"

// GraphStore implements store.GraphStore on a Neo4j driver.
type GraphStore struct {
	client   neo4j.DriverWithContext
	database string
}

// New creates a graph store connected to the given Neo4j instance.
func New(uri, username, password, database string) (*GraphStore, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: failed to create driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &GraphStore{client: client, database: database}, nil
}

// EnsureSchema creates the id constraint and the full-text index used by
// scored entity search.
func (g *GraphStore) EnsureSchema(ctx context.Context) error {
	session := g.session(ctx)
	defer session.Close(ctx)

	statements := []string{
		`CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
		fmt.Sprintf(`CREATE FULLTEXT INDEX %s IF NOT EXISTS FOR (e:Entity) ON EACH [e.name, e.description]`, fulltextIndexName),
	}
	for _, stmt := range statements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("neo4j: schema statement failed: %w", err)
		}
	}
	return nil
}

// UpsertEntity creates or updates an entity node, merging on id.
// SourceChunkIDs accumulate across writes.
func (g *GraphStore) UpsertEntity(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return err
	}

	attrs, err := marshalAttributes(entity.Attributes)
	if err != nil {
		return err
	}

	session := g.session(ctx)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (e:Entity {id: $id})
			SET e.name = $name,
			    e.type = $type,
			    e.description = $description,
			    e.attributes_json = $attributes,
			    e.source_chunk_ids = [x IN coalesce(e.source_chunk_ids, []) WHERE NOT x IN $chunk_ids] + $chunk_ids
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":          entity.ID,
			"name":        entity.Name,
			"type":        entity.Type,
			"description": entity.Description,
			"attributes":  attrs,
			"chunk_ids":   toAnySlice(entity.SourceChunkIDs),
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: entity upsert failed: %w", err)
	}
	return nil
}

// UpsertRelationship creates or updates a typed edge between two existing
// entities. The relationship type becomes the edge label after
// sanitization. Returns store.ErrEndpointMissing when either endpoint is
// absent.
func (g *GraphStore) UpsertRelationship(ctx context.Context, rel *types.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}

	label := identity.SanitizeLabel(rel.Type)
	attrs, err := marshalAttributes(rel.Attributes)
	if err != nil {
		return err
	}

	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// label is sanitized above; ids and props go through parameters.
		query := fmt.Sprintf(`
			MATCH (a:Entity {id: $source_id}), (b:Entity {id: $target_id})
			MERGE (a)-[r:%s {id: $id}]->(b)
			SET r.fact = $fact,
			    r.attributes_json = $attributes,
			    r.source_chunk_ids = [x IN coalesce(r.source_chunk_ids, []) WHERE NOT x IN $chunk_ids] + $chunk_ids
			RETURN r.id
		`, label)
		res, err := tx.Run(ctx, query, map[string]any{
			"source_id":  rel.SourceID,
			"target_id":  rel.TargetID,
			"id":         rel.ID,
			"fact":       rel.Fact,
			"attributes": attrs,
			"chunk_ids":  toAnySlice(rel.SourceChunkIDs),
		})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return len(records), nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: relationship upsert failed: %w", err)
	}
	if result.(int) == 0 {
		return store.ErrEndpointMissing
	}
	return nil
}

// SearchEntities finds entities by case-insensitive containment on name
// or description.
func (g *GraphStore) SearchEntities(ctx context.Context, query string, limit int) ([]types.Entity, error) {
	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cypher := `
			MATCH (e:Entity)
			WHERE toLower(e.name) CONTAINS toLower($q)
			   OR toLower(coalesce(e.description, '')) CONTAINS toLower($q)
			RETURN e
			LIMIT $limit
		`
		res, err := tx.Run(ctx, cypher, map[string]any{"q": query, "limit": limit})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: entity search failed: %w", err)
	}

	records := result.([]*neo4j.Record)
	entities := make([]types.Entity, 0, len(records))
	for _, record := range records {
		value, found := record.Get("e")
		if !found {
			continue
		}
		node, ok := value.(dbtype.Node)
		if !ok {
			continue
		}
		entities = append(entities, entityFromNode(node))
	}
	return entities, nil
}

// SearchEntitiesWithScore runs the full-text index query and returns
// entities with raw Lucene scores.
func (g *GraphStore) SearchEntitiesWithScore(ctx context.Context, query string, limit int) ([]store.EntityHit, error) {
	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cypher := `
			CALL db.index.fulltext.queryNodes($index, $q)
			YIELD node, score
			RETURN node, score
			LIMIT $limit
		`
		res, err := tx.Run(ctx, cypher, map[string]any{
			"index": fulltextIndexName,
			"q":     escapeLucene(query),
			"limit": limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: scored entity search failed: %w", err)
	}

	records := result.([]*neo4j.Record)
	hits := make([]store.EntityHit, 0, len(records))
	for _, record := range records {
		value, found := record.Get("node")
		if !found {
			continue
		}
		node, ok := value.(dbtype.Node)
		if !ok {
			continue
		}
		score, _ := record.Get("score")
		hit := store.EntityHit{Entity: entityFromNode(node)}
		if f, ok := score.(float64); ok {
			hit.Score = f
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// GetNeighbors returns every edge touching any of the given entity ids as
// triples, in one batched query.
func (g *GraphStore) GetNeighbors(ctx context.Context, entityIDs []string) ([]types.KnowledgeGraphTriple, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}

	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		cypher := `
			MATCH (a:Entity)-[r]->(b:Entity)
			WHERE a.id IN $ids OR b.id IN $ids
			RETURN a, type(r) AS rel_type, r.fact AS fact, b
		`
		res, err := tx.Run(ctx, cypher, map[string]any{"ids": toAnySlice(entityIDs)})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: neighbor query failed: %w", err)
	}

	records := result.([]*neo4j.Record)
	triples := make([]types.KnowledgeGraphTriple, 0, len(records))
	for _, record := range records {
		sourceVal, _ := record.Get("a")
		targetVal, _ := record.Get("b")
		sourceNode, okS := sourceVal.(dbtype.Node)
		targetNode, okT := targetVal.(dbtype.Node)
		if !okS || !okT {
			continue
		}

		source := entityFromNode(sourceNode)
		target := entityFromNode(targetNode)
		triple := types.KnowledgeGraphTriple{
			Source: source.Ref(),
			Target: target.Ref(),
		}
		if relType, ok := recordString(record, "rel_type"); ok {
			triple.Relationship = relType
		}
		if fact, ok := recordString(record, "fact"); ok {
			triple.Fact = fact
		}
		triples = append(triples, triple)
	}
	return triples, nil
}

// BFSSearch traverses out from the seeds up to depth hops, in either edge
// direction, and returns discovered entities with their minimum hop
// distance. Seeds are excluded.
func (g *GraphStore) BFSSearch(ctx context.Context, seedIDs []string, depth, limit int) ([]store.BFSHit, error) {
	if len(seedIDs) == 0 || depth <= 0 {
		return nil, nil
	}

	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// Path length bounds cannot be parameterized; depth is an int.
		cypher := fmt.Sprintf(`
			MATCH p = (seed:Entity)-[*1..%d]-(n:Entity)
			WHERE seed.id IN $seeds AND NOT n.id IN $seeds
			WITH n, min(length(p)) AS depth
			RETURN n, depth
			ORDER BY depth ASC, n.id ASC
			LIMIT $limit
		`, depth)
		res, err := tx.Run(ctx, cypher, map[string]any{
			"seeds": toAnySlice(seedIDs),
			"limit": limit,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: bfs search failed: %w", err)
	}

	records := result.([]*neo4j.Record)
	hits := make([]store.BFSHit, 0, len(records))
	for _, record := range records {
		value, found := record.Get("n")
		if !found {
			continue
		}
		node, ok := value.(dbtype.Node)
		if !ok {
			continue
		}
		hit := store.BFSHit{Entity: entityFromNode(node)}
		if d, dFound := record.Get("depth"); dFound {
			if di, ok := d.(int64); ok {
				hit.Depth = int(di)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Stats reports entity and relationship counts.
func (g *GraphStore) Stats(ctx context.Context) (*store.GraphStats, error) {
	session := g.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Entity)
			OPTIONAL MATCH (:Entity)-[r]->(:Entity)
			RETURN count(DISTINCT e) AS entities, count(DISTINCT r) AS relationships
		`, nil)
		if err != nil {
			return nil, err
		}
		return res.Single(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: stats query failed: %w", err)
	}

	record := result.(*neo4j.Record)
	stats := &store.GraphStats{}
	if v, ok := record.Get("entities"); ok {
		if n, ok := v.(int64); ok {
			stats.EntityCount = int(n)
		}
	}
	if v, ok := record.Get("relationships"); ok {
		if n, ok := v.(int64); ok {
			stats.RelationshipCount = int(n)
		}
	}
	return stats, nil
}

// Close closes the underlying driver.
func (g *GraphStore) Close() error {
	return g.client.Close(context.Background())
}

func (g *GraphStore) session(ctx context.Context) neo4j.SessionWithContext {
	return g.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.database})
}

func entityFromNode(node dbtype.Node) types.Entity {
	entity := types.Entity{}
	if v, ok := node.Props["id"].(string); ok {
		entity.ID = v
	}
	if v, ok := node.Props["name"].(string); ok {
		entity.Name = v
	}
	if v, ok := node.Props["type"].(string); ok {
		entity.Type = v
	}
	if v, ok := node.Props["description"].(string); ok {
		entity.Description = v
	}
	if v, ok := node.Props["attributes_json"].(string); ok && v != "" && v != "{}" {
		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(v), &attrs); err == nil {
			entity.Attributes = attrs
		}
	}
	if v, ok := node.Props["source_chunk_ids"].([]any); ok {
		for _, item := range v {
			if s, ok := item.(string); ok {
				entity.SourceChunkIDs = append(entity.SourceChunkIDs, s)
			}
		}
	}
	return entity
}

func recordString(record *neo4j.Record, key string) (string, bool) {
	value, found := record.Get(key)
	if !found || value == nil {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

func marshalAttributes(attributes map[string]string) (string, error) {
	if len(attributes) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(attributes)
	if err != nil {
		return "", fmt.Errorf("neo4j: attributes marshal failed: %w", err)
	}
	return string(data), nil
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

// escapeLucene escapes Lucene query syntax so user text is matched
// literally by the full-text index.
func escapeLucene(query string) string {
	var b strings.Builder
	for _, r := range query {
		if strings.ContainsRune(`+-&|!(){}[]^"~*?:\/`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
