// Package export writes pipeline results as frontend-consumable JSON:
// latest.json 스냅샷, 타임스탬프 히스토리, 히스토리 인덱스.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wonny/sentinel/backend/internal/criteria"
	"github.com/wonny/sentinel/backend/internal/external/exim"
	"github.com/wonny/sentinel/backend/internal/external/kis"
	"github.com/wonny/sentinel/backend/internal/fundamental"
	"github.com/wonny/sentinel/backend/internal/theme"
	"github.com/wonny/sentinel/backend/pkg/config"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

// 히스토리 파일명 형식: 2026-08-28_0730.json
const historyNameLayout = "2006-01-02_1504"

// Snapshot is the full run output serialized to latest.json.
// 값은 전부 프리미티브/슬라이스/맵 — 그대로 직렬화 가능해야 한다.
type Snapshot struct {
	GeneratedAt  string                             `json:"generated_at"`
	Candidates   []kis.RankedStock                  `json:"candidates"`
	Verdicts     map[string]criteria.StockVerdict   `json:"verdicts"`
	RuleOrder    []string                           `json:"rule_order"`
	Rising       []kis.RankedStock                  `json:"rising,omitempty"`  // 상승률 AND 유동성 상위
	Falling      []kis.RankedStock                  `json:"falling,omitempty"` // 하락률 AND 유동성 상위
	Fundamentals map[string]fundamental.Fundamental `json:"fundamentals,omitempty"`
	Theme        *theme.Analysis                    `json:"theme_analysis,omitempty"`
	Exchange     *exim.Rates                        `json:"exchange_rates,omitempty"`
}

// Exporter owns the output directory layout.
type Exporter struct {
	cfg    config.ExportConfig
	logger *logger.Logger

	now func() time.Time
}

// New creates an exporter rooted at cfg.OutputDir.
func New(cfg config.ExportConfig, log *logger.Logger) *Exporter {
	return &Exporter{cfg: cfg, logger: log, now: time.Now}
}

// Write persists the snapshot: latest.json 갱신, 히스토리 파일 추가, 보존
// 기간 지난 히스토리 삭제, 인덱스 재생성.
func (e *Exporter) Write(snap *Snapshot) error {
	if snap.GeneratedAt == "" {
		snap.GeneratedAt = e.now().Format("2006-01-02 15:04:05")
	}
	if snap.RuleOrder == nil {
		snap.RuleOrder = criteria.RuleOrder()
	}

	if err := os.MkdirAll(e.historyDir(), 0o755); err != nil {
		return fmt.Errorf("export: create output dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal snapshot: %w", err)
	}

	latest := filepath.Join(e.cfg.OutputDir, "latest.json")
	if err := writeAtomic(latest, data); err != nil {
		return err
	}

	historyName := e.now().Format(historyNameLayout) + ".json"
	if err := writeAtomic(filepath.Join(e.historyDir(), historyName), data); err != nil {
		return err
	}

	removed, err := e.cleanupHistory()
	if err != nil {
		e.logger.WithError(err).Warn("History cleanup failed")
	} else if removed > 0 {
		e.logger.WithField("removed", removed).Info("Old history files removed")
	}

	if err := e.writeIndex(); err != nil {
		return err
	}

	e.logger.WithFields(map[string]interface{}{
		"candidates": len(snap.Candidates),
		"verdicts":   len(snap.Verdicts),
		"path":       latest,
	}).Info("Pipeline results exported")
	return nil
}

// Prune applies retention cleanup and rebuilds the index without writing a
// new snapshot. CLI 정리 명령용.
func (e *Exporter) Prune() (int, error) {
	removed, err := e.cleanupHistory()
	if err != nil {
		return 0, err
	}
	if err := e.writeIndex(); err != nil {
		return removed, err
	}
	return removed, nil
}

func (e *Exporter) historyDir() string {
	return filepath.Join(e.cfg.OutputDir, "history")
}

// cleanupHistory removes history files older than the retention window.
func (e *Exporter) cleanupHistory() (int, error) {
	entries, err := filepath.Glob(filepath.Join(e.historyDir(), "*.json"))
	if err != nil {
		return 0, err
	}

	cutoff := e.now().AddDate(0, 0, -e.cfg.RetentionDays)
	removed := 0
	for _, path := range entries {
		ts, ok := parseHistoryName(filepath.Base(path))
		if !ok {
			continue // 형식이 다른 파일은 건드리지 않는다
		}
		if ts.Before(cutoff) {
			if err := os.Remove(path); err != nil {
				e.logger.WithError(err).WithField("path", path).Warn("Failed to remove old history file")
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// HistoryEntry is one row of history-index.json.
type HistoryEntry struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Path string `json:"path"`
}

type historyIndex struct {
	UpdatedAt string         `json:"updated_at"`
	Count     int            `json:"count"`
	Entries   []HistoryEntry `json:"entries"`
}

// writeIndex rebuilds history-index.json, newest first.
func (e *Exporter) writeIndex() error {
	entries, err := filepath.Glob(filepath.Join(e.historyDir(), "*.json"))
	if err != nil {
		return fmt.Errorf("export: list history: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(entries)))

	idx := historyIndex{
		UpdatedAt: e.now().Format("2006-01-02 15:04:05"),
	}
	for _, path := range entries {
		name := filepath.Base(path)
		ts, ok := parseHistoryName(name)
		if !ok {
			continue
		}
		idx.Entries = append(idx.Entries, HistoryEntry{
			Date: ts.Format("2006-01-02"),
			Time: ts.Format("15:04"),
			Path: "data/history/" + name,
		})
	}
	idx.Count = len(idx.Entries)

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("export: marshal index: %w", err)
	}
	return writeAtomic(filepath.Join(e.cfg.OutputDir, "history-index.json"), data)
}

func parseHistoryName(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, ".json")
	ts, err := time.Parse(historyNameLayout, base)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".export_*.tmp")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("export: close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("export: replace %s: %w", path, err)
	}
	return nil
}
