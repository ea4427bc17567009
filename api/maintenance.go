package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/warp/nurse-pay/backup"
	"github.com/warp/nurse-pay/generic"
)

// errBackupsDisabled is answered when no backup manager is configured.
var errBackupsDisabled = fmt.Errorf("%w: backups are not configured", generic.ErrNoBackup)

// =============================================================================
// SNAPSHOT ENDPOINTS
// =============================================================================

// ExportSnapshot downloads every record as a JSON snapshot.
// GET /api/snapshot
func (h *Handler) ExportSnapshot(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	snap, err := backup.Take(r.Context(), h.Registry, now)
	if err != nil {
		h.fail(w, r, "Failed to export data", err)
		return
	}
	data, err := backup.Encode(snap)
	if err != nil {
		h.fail(w, r, "Failed to export data", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="nurse-pay-backup-%s.json"`, now.UTC().Format(generic.DateLayout)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ImportSnapshot replaces every record with the snapshot in the body. A
// malformed snapshot leaves the stored records untouched.
// POST /api/snapshot?confirm=true
func (h *Handler) ImportSnapshot(w http.ResponseWriter, r *http.Request) {
	if !requireConfirm(w, r) {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	res, err := backup.Import(r.Context(), h.Registry, data)
	if err != nil {
		h.fail(w, r, "Failed to import data", err)
		return
	}
	h.observeRecords(r.Context())
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// BACKUP ENDPOINTS
// =============================================================================

// RunBackup writes a snapshot to every configured target.
// POST /api/backups
func (h *Handler) RunBackup(w http.ResponseWriter, r *http.Request) {
	if h.Backups == nil {
		h.fail(w, r, "Backup failed", errBackupsDisabled)
		return
	}
	res, err := h.Backups.Backup(r.Context())
	if err != nil {
		h.fail(w, r, "Backup failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetBackupStatus reports the last backup and whether one is running.
// GET /api/backups/status
func (h *Handler) GetBackupStatus(w http.ResponseWriter, r *http.Request) {
	if h.Backups == nil {
		writeJSON(w, http.StatusOK, backup.Status{Targets: []string{}})
		return
	}
	writeJSON(w, http.StatusOK, h.Backups.Status())
}

// ListBackups lists the backups of ?target (first target by default).
// GET /api/backups
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if h.Backups == nil {
		h.fail(w, r, "Failed to list backups", errBackupsDisabled)
		return
	}
	target := r.URL.Query().Get("target")
	objs, err := h.Backups.List(r.Context(), target)
	if err != nil {
		h.fail(w, r, "Failed to list backups", err)
		return
	}
	if target == "" {
		target = h.Backups.Targets()[0].Name()
	}
	writeJSON(w, http.StatusOK, BackupListResponse{Target: target, Backups: nonNil(objs)})
}

// RestoreBackup imports the newest backup of ?target.
// POST /api/backups/restore?confirm=true
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	if !requireConfirm(w, r) {
		return
	}
	if h.Backups == nil {
		h.fail(w, r, "Restore failed", errBackupsDisabled)
		return
	}
	res, err := h.Backups.Restore(r.Context(), r.URL.Query().Get("target"))
	if err != nil {
		h.fail(w, r, "Restore failed", err)
		return
	}
	h.observeRecords(r.Context())
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// GetStorageInfo returns record counts, the serialized size and the
// time of the last backup.
// GET /api/admin/storage
func (h *Handler) GetStorageInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.Registry.StorageInfo(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to read storage info", err)
		return
	}
	if h.Metrics != nil {
		h.Metrics.SetRecordCounts(info.Rates, info.Missions)
	}
	dto := StorageInfoDTO{StorageInfo: info}
	if h.Backups != nil {
		dto.LastBackup = h.Backups.Status().LastBackup
	}
	writeJSON(w, http.StatusOK, dto)
}

// BackfillSchedules copies rate times onto missions that have none.
// POST /api/admin/backfill-schedules
func (h *Handler) BackfillSchedules(w http.ResponseWriter, r *http.Request) {
	res, err := h.Registry.BackfillSchedules(r.Context())
	if err != nil {
		h.fail(w, r, "Backfill failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SeedDefaults loads the default rate catalog when no rate exists.
// POST /api/admin/seed
func (h *Handler) SeedDefaults(w http.ResponseWriter, r *http.Request) {
	n, err := h.Registry.SeedDefaults(r.Context())
	if err != nil {
		h.fail(w, r, "Seeding failed", err)
		return
	}
	h.observeRecords(r.Context())
	writeJSON(w, http.StatusOK, SeedResponse{Added: n})
}

// ResetData clears every record and reloads the default rates.
// POST /api/admin/reset?confirm=true
func (h *Handler) ResetData(w http.ResponseWriter, r *http.Request) {
	if !requireConfirm(w, r) {
		return
	}
	if err := h.Registry.Reset(r.Context()); err != nil {
		h.fail(w, r, "Reset failed", err)
		return
	}
	h.currentScenario = ""
	h.observeRecords(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
