package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"fee-ledger/internal/clients"
	"fee-ledger/internal/domain"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

var ErrExportNotFound = errors.New("export not found")

const (
	exportSetKey = "export_ids:"
	exportTTL    = 20 * time.Minute

	ExportStatement   = "statement"
	ExportCollections = "collections"
)

type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	BranchID string    `json:"branch_id"`
	Filters  any       `json:"filters"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Error    *string   `json:"error,omitempty"`
	Created  time.Time `json:"created_at"`
}

// ExportView is an export as listed to the terminals.
type ExportView struct {
	Key       string    `json:"key"`
	Type      string    `json:"type"`
	Progress  float64   `json:"progress"`
	FileURL   *string   `json:"file_url"`
	Error     *string   `json:"error,omitempty"`
	Filters   any       `json:"filters"`
	CreatedAt string    `json:"created_at"`
	Created   time.Time `json:"created_at_iso"`
}

type ExportStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SAdd(ctx context.Context, key string, members ...any) error
	SRem(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

type FileStore interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	GetURL(fileName string) string
}

type Uploader interface {
	Upload(ctx context.Context, fileName string, data []byte) (string, error)
}

type ExportNotifier interface {
	NotifyExportProgress(ctx context.Context, branchID, exportID string, progress float64, stage string) error
	NotifyExportComplete(ctx context.Context, branchID, exportID, url, filename string) error
	NotifyExportFailed(ctx context.Context, branchID, exportID, errMsg string) error
}

type LedgerLoader interface {
	Ledger(ctx context.Context, scope domain.Scope, studentID string, at time.Time) (StudentLedger, error)
}

// ExportService builds xlsx statements and reports in the background. Status lives in redis,
// progress goes out over websocket and the file is kept locally and optionally mirrored to S3.
type ExportService struct {
	store    ExportStore
	files    FileStore
	uploader Uploader
	ws       ExportNotifier
	ledgers  LedgerLoader
	payments CollectionsSource

	keyPrefix string
	now       func() time.Time
	spawn     func(func())
}

func NewExportService(
	store ExportStore,
	files FileStore,
	uploader Uploader,
	ws ExportNotifier,
	ledgers LedgerLoader,
	payments CollectionsSource,
	keyPrefix string,
) *ExportService {
	if keyPrefix == "" {
		keyPrefix = "exports:"
	}
	return &ExportService{
		store:     store,
		files:     files,
		uploader:  uploader,
		ws:        ws,
		ledgers:   ledgers,
		payments:  payments,
		keyPrefix: keyPrefix,
		now:       time.Now,
		spawn:     func(f func()) { go f() },
	}
}

// KeyPrefix is prepended to export ids to form their redis key.
func (s *ExportService) KeyPrefix() string { return s.keyPrefix }

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.store.SAdd(ctx, exportSetKey+st.BranchID, st.Key)
}

func (s *ExportService) loadStatus(ctx context.Context, key string) (*ExportStatus, error) {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, clients.ErrKeyNotFound) {
		return nil, ErrExportNotFound
	}
	if err != nil {
		return nil, err
	}
	var st ExportStatus
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}
	return &st, nil
}

func (s *ExportService) view(st *ExportStatus) ExportView {
	return ExportView{
		Key:       st.Key,
		Type:      st.Type,
		Progress:  st.Progress,
		FileURL:   st.FileURL,
		Error:     st.Error,
		Filters:   st.Filters,
		CreatedAt: humanize.RelTime(st.Created, s.now(), "ago", "from now"),
		Created:   st.Created,
	}
}

// GetExports lists the branch's exports, newest first. Expired entries are pruned from the index.
func (s *ExportService) GetExports(ctx context.Context, branchID string) ([]ExportView, error) {
	keys, err := s.store.SMembers(ctx, exportSetKey+branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []*ExportStatus
	for _, key := range keys {
		st, err := s.loadStatus(ctx, key)
		if errors.Is(err, ErrExportNotFound) {
			_ = s.store.SRem(ctx, exportSetKey+branchID, key)
			continue
		}
		if err != nil {
			log.Printf("[EXPORT] skip %s: %v", key, err)
			continue
		}
		if st.BranchID == branchID {
			statuses = append(statuses, st)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	views := make([]ExportView, 0, len(statuses))
	for _, st := range statuses {
		views = append(views, s.view(st))
	}
	return views, nil
}

// GetExport returns one export of the branch. Exports of other branches are reported as missing.
func (s *ExportService) GetExport(ctx context.Context, exportID, branchID string) (ExportView, error) {
	st, err := s.loadStatus(ctx, exportID)
	if err != nil {
		return ExportView{}, err
	}
	if st.BranchID != branchID {
		return ExportView{}, ErrExportNotFound
	}
	return s.view(st), nil
}

// workbookFunc fills a workbook, reporting progress in [0, 100) as it goes.
type workbookFunc func(ctx context.Context, progress func(float64)) (*excelize.File, string, error)

// start records a queued export and runs build in the background.
func (s *ExportService) start(ctx context.Context, scope domain.Scope, typ string, filters map[string]any, build workbookFunc) (string, error) {
	st := &ExportStatus{
		Key:      s.keyPrefix + uuid.NewString(),
		Type:     typ,
		BranchID: scope.BranchID,
		Filters:  filters,
		Created:  s.now(),
	}
	if err := s.saveStatus(ctx, st); err != nil {
		return "", fmt.Errorf("save export status: %w", err)
	}

	s.spawn(func() { s.run(context.Background(), st, build) })
	return st.Key, nil
}

func (s *ExportService) run(ctx context.Context, st *ExportStatus, build workbookFunc) {
	progress := func(p float64) {
		p = math.Round(p)
		if p >= 100 {
			p = 95
		}
		st.Progress = p
		_ = s.saveStatus(ctx, st)
		_ = s.ws.NotifyExportProgress(ctx, st.BranchID, st.Key, p, "generating")
	}

	f, fileName, err := build(ctx, progress)
	if err != nil {
		s.fail(ctx, st, fmt.Sprintf("build export failed: %v", err))
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.fail(ctx, st, fmt.Sprintf("write workbook failed: %v", err))
		return
	}
	data := buf.Bytes()

	st.Progress = 95
	_ = s.saveStatus(ctx, st)
	_ = s.ws.NotifyExportProgress(ctx, st.BranchID, st.Key, 95, "saving")

	saved, err := s.files.Save(ctx, fileName, data)
	if err != nil {
		s.fail(ctx, st, fmt.Sprintf("save export failed: %v", err))
		return
	}
	url := s.files.GetURL(saved)

	if s.uploader != nil {
		remote, err := s.uploader.Upload(ctx, saved, data)
		if err != nil {
			log.Printf("[EXPORT] %s: s3 upload failed, serving local copy: %v", st.Key, err)
		} else {
			url = remote
		}
	}

	st.FileURL = &url
	st.Progress = 100
	_ = s.saveStatus(ctx, st)
	_ = s.ws.NotifyExportProgress(ctx, st.BranchID, st.Key, 100, "ready")
	_ = s.ws.NotifyExportComplete(ctx, st.BranchID, st.Key, url, fileName)
}

func (s *ExportService) fail(ctx context.Context, st *ExportStatus, msg string) {
	log.Printf("[EXPORT] %s: %s", st.Key, msg)
	st.Error = &msg
	st.Progress = 100
	_ = s.saveStatus(ctx, st)
	_ = s.ws.NotifyExportFailed(ctx, st.BranchID, st.Key, msg)
}

type sheetStyles struct {
	header int
	money  int
	total  int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return sheetStyles{}, err
	}
	// built-in format 4 is "#,##0.00"
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return sheetStyles{}, err
	}
	total, err := f.NewStyle(&excelize.Style{NumFmt: 4, Font: &excelize.Font{Bold: true}})
	if err != nil {
		return sheetStyles{}, err
	}
	return sheetStyles{header: header, money: money, total: total}, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheet, "A1", last, style)
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
