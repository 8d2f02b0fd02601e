package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/scp/internal/graph"
)

// SnapshotInfo describes one saved snapshot.
type SnapshotInfo struct {
	ID    int64
	Name  string
	Count int
}

// SaveSnapshot writes records as a new snapshot called name. Earlier
// snapshots with the same name are kept; LoadSnapshot returns the latest.
func (s *Store) SaveSnapshot(ctx context.Context, name string, records []graph.Record) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO snapshots (name, count) VALUES (?, ?)`, name, len(records))
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO elements
		(snapshot_id, idx, gen, type, src_idx, src_gen, tgt_idx, tgt_gen, content, identifier, label)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var content sql.NullString
		if r.HasContent {
			content = sql.NullString{String: r.Content, Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			id,
			r.Handle.Index(), r.Handle.Gen(),
			uint32(r.Type),
			r.Source.Index(), r.Source.Gen(),
			r.Target.Index(), r.Target.Gen(),
			content,
			r.Identifier,
			r.Label,
		)
		if err != nil {
			return 0, fmt.Errorf("save snapshot: element %s: %w", r.Handle, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save snapshot: commit: %w", err)
	}
	return id, nil
}

// LoadSnapshot returns the records of the latest snapshot called name,
// ordered by handle index.
func (s *Store) LoadSnapshot(ctx context.Context, name string) ([]graph.Record, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM snapshots WHERE name = ? ORDER BY id DESC LIMIT 1`, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load snapshot %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	return s.loadElements(ctx, id)
}

func (s *Store) loadElements(ctx context.Context, id int64) ([]graph.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, gen, type, src_idx, src_gen, tgt_idx, tgt_gen, content, identifier, label
		FROM elements
		WHERE snapshot_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query elements: %w", err)
	}
	defer rows.Close()

	records := []graph.Record{}
	for rows.Next() {
		var (
			idx, gen, typ     uint32
			srcIdx, srcGen    uint32
			tgtIdx, tgtGen    uint32
			content           sql.NullString
			identifier, label string
		)
		if err := rows.Scan(&idx, &gen, &typ, &srcIdx, &srcGen, &tgtIdx, &tgtGen, &content, &identifier, &label); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		records = append(records, graph.Record{
			Handle:     graph.HandleOf(idx, gen),
			Type:       graph.Type(typ),
			Source:     graph.HandleOf(srcIdx, srcGen),
			Target:     graph.HandleOf(tgtIdx, tgtGen),
			Content:    content.String,
			HasContent: content.Valid,
			Identifier: identifier,
			Label:      label,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate elements: %w", err)
	}
	return records, nil
}

// ListSnapshots returns every snapshot in save order.
func (s *Store) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, count FROM snapshots ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	out := []SnapshotInfo{}
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Count); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// SaveGraph snapshots g under name.
func (s *Store) SaveGraph(ctx context.Context, name string, g *graph.Store) (int64, error) {
	return s.SaveSnapshot(ctx, name, g.Snapshot())
}

// LoadGraph restores the latest snapshot called name into a new graph.
func (s *Store) LoadGraph(ctx context.Context, name string) (*graph.Store, error) {
	records, err := s.LoadSnapshot(ctx, name)
	if err != nil {
		return nil, err
	}
	g := graph.NewStore()
	if err := g.Restore(records); err != nil {
		return nil, fmt.Errorf("load graph %q: %w", name, err)
	}
	return g, nil
}
