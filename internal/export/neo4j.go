// Package export writes the scanner's dependency graph to Neo4j so a scan
// gap (a layout the scanner failed to predict) can be diagnosed by querying
// the graph the prediction was based on.
package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/715d/aotscan/internal/scan"
)

// Neo4jConfig holds the connection settings for a graph export.
type Neo4jConfig struct {
	URI      string
	User     string
	Password string
}

// Neo4jExporter loads scan graphs into Neo4j using batch UNWIND queries.
type Neo4jExporter struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jExporter connects to Neo4j and returns a ready-to-use exporter.
func NewNeo4jExporter(cfg Neo4jConfig) (*Neo4jExporter, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Neo4jExporter{driver: driver}, nil
}

// Close releases the underlying driver resources.
func (e *Neo4jExporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

func (e *Neo4jExporter) run(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, e.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

// Clean removes previously exported scan graph data.
func (e *Neo4jExporter) Clean(ctx context.Context) error {
	queries := []string{
		"MATCH ()-[r:DEPENDS_ON]->() DELETE r",
		"MATCH (n:ScanNode) DETACH DELETE n",
	}
	for _, q := range queries {
		if err := e.run(ctx, q, nil); err != nil {
			return err
		}
	}
	return nil
}

// Export upserts every marked node and its dependency edges.
func (e *Neo4jExporter) Export(ctx context.Context, res *scan.Result) error {
	if err := e.run(ctx,
		"CREATE INDEX scan_node_key IF NOT EXISTS FOR (n:ScanNode) ON (n.key)", nil); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	names := res.Names()
	key := func(n scan.Node) string {
		switch n.Kind {
		case scan.NodeMethodBody, scan.NodeShadowMethod:
			return n.Kind.String() + ":" + names.FuncName(n.Fn)
		case scan.NodeRuntimeType:
			return n.Kind.String() + ":" + names.TypeName(n.Type)
		case scan.NodeVTableSlot:
			return n.Kind.String() + ":" + names.TypeName(n.Type) + "." + n.Sym.Name()
		case scan.NodeDictEntry:
			target := names.TypeName(n.Type)
			if n.Sym != nil {
				target += "." + n.Sym.Name()
			}
			return n.Kind.String() + ":" + names.RefKey(n.Owner) + "->" + target
		}
		return n.Kind.String()
	}

	nodes := res.Nodes()
	batch := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		batch = append(batch, map[string]any{"key": key(n), "kind": n.Kind.String()})
	}
	slog.Info("exporting scan nodes", "num", len(batch))
	if err := e.run(ctx,
		`UNWIND $batch AS row
		 MERGE (n:ScanNode {key: row.key})
		 SET n.kind = row.kind`,
		map[string]any{"batch": batch}); err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}

	edges := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		from := key(n)
		for _, dep := range res.Edges(n) {
			edges = append(edges, map[string]any{"from": from, "to": key(dep)})
		}
	}
	slog.Info("exporting scan edges", "num", len(edges))
	if err := e.run(ctx,
		`UNWIND $batch AS row
		 MATCH (a:ScanNode {key: row.from})
		 MATCH (b:ScanNode {key: row.to})
		 MERGE (a)-[:DEPENDS_ON]->(b)`,
		map[string]any{"batch": edges}); err != nil {
		return fmt.Errorf("load edges: %w", err)
	}
	return nil
}
