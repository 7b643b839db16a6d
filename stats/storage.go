// Package stats keeps monthly counters for the analyzer's caches and
// analysis outcomes, persisted as JSON under the data directory.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/siteanalyzer/backend/logging"
)

const (
	statsFile     = "stats.json"
	monthLayout   = "2006-01"
	flushInterval = 5 * time.Minute
	writeDebounce = time.Minute
)

// MonthlyStats holds counters for one calendar month.
type MonthlyStats struct {
	AnalysisCacheHits   int       `json:"analysis_hits"`
	AnalysisCacheMisses int       `json:"analysis_misses"`
	ProbeCacheHits      int       `json:"probe_hits"`
	ProbeCacheMisses    int       `json:"probe_misses"`
	Analyses            int       `json:"analyses"`
	Failures            int       `json:"failures"`
	Critiques           int       `json:"critiques"`
	TotalOverallScore   int       `json:"total_overall_score"`
	LastUpdated         time.Time `json:"last_updated"`
}

// AverageOverallScore is the mean overall score of the month's analyses.
func (m MonthlyStats) AverageOverallScore() float64 {
	if m.Analyses == 0 {
		return 0
	}
	return float64(m.TotalOverallScore) / float64(m.Analyses)
}

// Delta is an increment applied to the current month.
type Delta struct {
	AnalysisCacheHits   int
	AnalysisCacheMisses int
	ProbeCacheHits      int
	ProbeCacheMisses    int
	Analyses            int
	Failures            int
	Critiques           int
	OverallScore        int
}

// Storage handles persistent storage of statistics.
type Storage struct {
	mutex       sync.RWMutex
	stats       map[string]*MonthlyStats // key: "YYYY-MM"
	filePath    string
	lastWrite   time.Time
	writeBuffer chan struct{}
	done        chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
	now         func() time.Time
	logger      logging.Logger
}

// NewStorage creates a statistics storage under dataDir and starts its
// background writer. Call Close to stop it.
func NewStorage(dataDir string) (*Storage, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Storage{
		stats:       make(map[string]*MonthlyStats),
		filePath:    filepath.Join(dataDir, statsFile),
		writeBuffer: make(chan struct{}, 1),
		done:        make(chan struct{}),
		now:         time.Now,
		logger:      logging.Named("stats"),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}

	s.wg.Add(1)
	go s.backgroundWriter()

	return s, nil
}

func (s *Storage) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return json.Unmarshal(data, &s.stats)
}

// Flush writes the statistics to disk, replacing the file atomically.
func (s *Storage) Flush() error {
	s.mutex.RLock()
	data, err := json.Marshal(s.stats)
	s.mutex.RUnlock()

	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

func (s *Storage) backgroundWriter() {
	defer s.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.writeBuffer:
		case <-ticker.C:
		case <-s.done:
			return
		}
		if err := s.Flush(); err != nil {
			s.logger.Error(context.Background(), "failed to persist stats", logging.Error(err))
		}
	}
}

// Close stops the background writer and flushes once more.
func (s *Storage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		err = s.Flush()
	})
	return err
}

func (s *Storage) currentMonth() string {
	return s.now().Format(monthLayout)
}

func (s *Storage) requestWrite() {
	select {
	case s.writeBuffer <- struct{}{}:
	default:
		// write already pending
	}
}

// Add applies d to the current month's counters.
func (s *Storage) Add(d Delta) {
	month := s.currentMonth()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, exists := s.stats[month]
	if !exists {
		m = &MonthlyStats{}
		s.stats[month] = m
	}

	m.AnalysisCacheHits += d.AnalysisCacheHits
	m.AnalysisCacheMisses += d.AnalysisCacheMisses
	m.ProbeCacheHits += d.ProbeCacheHits
	m.ProbeCacheMisses += d.ProbeCacheMisses
	m.Analyses += d.Analyses
	m.Failures += d.Failures
	m.Critiques += d.Critiques
	m.TotalOverallScore += d.OverallScore
	m.LastUpdated = s.now()

	if s.now().Sub(s.lastWrite) > writeDebounce {
		s.requestWrite()
		s.lastWrite = s.now()
	}
}

// CurrentStats returns statistics for the current month.
func (s *Storage) CurrentStats() MonthlyStats {
	m, _ := s.MonthlyStats(s.currentMonth())
	return m
}

// MonthlyStats returns statistics for a "YYYY-MM" month.
func (s *Storage) MonthlyStats(yearMonth string) (MonthlyStats, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if m, exists := s.stats[yearMonth]; exists {
		return *m, true
	}
	return MonthlyStats{}, false
}

// Cleanup drops statistics older than the last retainMonths months,
// counting the current one. retainMonths below 1 keeps only the current month.
func (s *Storage) Cleanup(retainMonths int) {
	if retainMonths < 1 {
		retainMonths = 1
	}
	now := s.now()
	keep := make(map[string]bool, retainMonths)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := 0; i < retainMonths; i++ {
		keep[first.AddDate(0, -i, 0).Format(monthLayout)] = true
	}

	s.mutex.Lock()
	for key := range s.stats {
		if !keep[key] {
			delete(s.stats, key)
		}
	}
	s.mutex.Unlock()

	s.requestWrite()
	s.logger.Debug(context.Background(), "pruned monthly stats", logging.Int("retain_months", retainMonths))
}

// Months returns every month with statistics, newest first.
func (s *Storage) Months() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	months := make([]string, 0, len(s.stats))
	for month := range s.stats {
		months = append(months, month)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
	return months
}
