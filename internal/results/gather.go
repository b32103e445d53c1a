package results

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"llmperf/internal/hardware"
	"llmperf/internal/logger"
	"llmperf/internal/metrics"
	"llmperf/internal/storage"
)

// ArtifactPattern selects result files inside a namespace.
const ArtifactPattern = "**/benchmark.json"

// NamespaceNotFoundError means a cell has never been uploaded. Callers skip
// the cell and continue.
type NamespaceNotFoundError struct {
	Cell      hardware.Cell
	Namespace string
}

func (e *NamespaceNotFoundError) Error() string {
	return fmt.Sprintf("namespace %s not found (%s)", e.Namespace, e.Cell)
}

// ArtifactError means a namespace exists but one of its artifacts could not
// be read or parsed.
type ArtifactError struct {
	Namespace string
	Path      string
	Err       error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("artifact %s/%s: %v", e.Namespace, e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// Gatherer reads a cell's artifacts from a store and flattens them.
type Gatherer struct {
	store        storage.Store
	organization string
	metrics      *metrics.Collector
}

// NewGatherer creates a gatherer for namespaces under organization.
func NewGatherer(store storage.Store, organization string, m *metrics.Collector) *Gatherer {
	return &Gatherer{store: store, organization: organization, metrics: m}
}

// Namespace returns the remote namespace of a cell.
func (g *Gatherer) Namespace(cell hardware.Cell) string {
	return cell.Namespace(g.organization)
}

// Gather returns every record of a cell in artifact discovery order.
// A missing namespace yields *NamespaceNotFoundError.
func (g *Gatherer) Gather(ctx context.Context, cell hardware.Cell) ([]Record, error) {
	ns := g.Namespace(cell)
	ok, err := g.store.Exists(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("failed to check namespace %s: %w", ns, err)
	}
	if !ok {
		return nil, &NamespaceNotFoundError{Cell: cell, Namespace: ns}
	}

	paths, err := g.store.List(ctx, ns, ArtifactPattern)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NamespaceNotFoundError{Cell: cell, Namespace: ns}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", ns, err)
	}

	records := make([]Record, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := g.store.Get(ctx, ns, path)
		if err != nil {
			return nil, &ArtifactError{Namespace: ns, Path: path, Err: err}
		}
		doc, err := Decode(data)
		if err != nil {
			return nil, &ArtifactError{Namespace: ns, Path: path, Err: err}
		}
		Patch(doc)
		for _, row := range Flatten(doc) {
			records = append(records, NewRecord(cell, row))
		}
	}
	g.metrics.RecordGathered(cell.Backend, cell.Hardware, cell.Subset, cell.Machine, len(records))
	return records, nil
}

// CellResult is the outcome of gathering one cell.
type CellResult struct {
	Cell    hardware.Cell
	Records []Record
	Err     error
}

// Missing reports whether the cell's namespace does not exist.
func (r CellResult) Missing() bool {
	var nf *NamespaceNotFoundError
	return errors.As(r.Err, &nf)
}

// GatherAll gathers cells concurrently and returns results in input order.
// Per-cell failures never abort the others: a missing namespace is logged
// once with its tuple and contributes no rows, other errors are logged and
// kept on the CellResult. Only context cancellation is returned.
func GatherAll(ctx context.Context, g *Gatherer, cells []hardware.Cell, parallelism int, log *logger.Logger) ([]CellResult, error) {
	if log == nil {
		log = logger.Discard()
	}
	results := make([]CellResult, len(cells))

	eg, egCtx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		eg.SetLimit(parallelism)
	}
	for i, cell := range cells {
		eg.Go(func() error {
			records, err := g.Gather(egCtx, cell)
			results[i] = CellResult{Cell: cell, Records: records, Err: err}

			lc := log.WithContext(&logger.LogContext{
				Backend:   cell.Backend,
				Hardware:  cell.Hardware,
				Subset:    cell.Subset,
				Machine:   cell.Machine,
				Operation: "gather",
			})
			var nf *NamespaceNotFoundError
			switch {
			case err == nil:
				lc.Debug("📥 Gathered %d records from %s", len(records), g.Namespace(cell))
			case errors.As(err, &nf):
				g.metrics.RecordMissingNamespace()
				lc.Warn("⚠️ Dataset not found: %s", nf.Namespace)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				lc.Error("❌ Dataset %s exists but could not be processed: %v", g.Namespace(cell), err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Records concatenates the rows of every cell in order.
func Records(results []CellResult) []Record {
	var out []Record
	for _, r := range results {
		out = append(out, r.Records...)
	}
	return out
}
