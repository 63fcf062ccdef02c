package gallery

import (
	"context"
	"path/filepath"

	"github.com/starford/photolog/internal/models"
)

// AuditReport lists inconsistencies between the index and the file store.
type AuditReport struct {
	Entries  int            `json:"entries"`
	Assets   int            `json:"assets"`
	Orphaned []models.Asset `json:"orphaned"` // files no entry points at
	Missing  []string       `json:"missing"`  // ids whose file is gone
}

// Clean reports whether the index and the file store agree.
func (r AuditReport) Clean() bool {
	return len(r.Orphaned) == 0 && len(r.Missing) == 0
}

// Audit compares the collection with the file store. It repairs nothing and
// does not count as an operation for Busy or LastError.
func (m *Manager) Audit(ctx context.Context) (AuditReport, error) {
	if err := ctx.Err(); err != nil {
		return AuditReport{}, err
	}
	assets, err := m.store.List()
	if err != nil {
		return AuditReport{}, err
	}
	entries := m.Entries()

	referenced := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		referenced[filepath.Base(e.Filepath)] = struct{}{}
	}
	present := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		present[a.Name] = struct{}{}
	}

	report := AuditReport{
		Entries:  len(entries),
		Assets:   len(assets),
		Orphaned: []models.Asset{},
		Missing:  []string{},
	}
	for _, a := range assets {
		if _, ok := referenced[a.Name]; !ok {
			report.Orphaned = append(report.Orphaned, a)
		}
	}
	for _, e := range entries {
		if _, ok := present[filepath.Base(e.Filepath)]; !ok {
			report.Missing = append(report.Missing, e.ID)
		}
	}
	return report, nil
}
