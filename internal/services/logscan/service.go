package logscan

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/interfaces"
	"github.com/ternarybob/vigil/internal/models"
)

// Window modes
const (
	ModeRecent = "recent"
	ModeAll    = "all"
)

// Read modes
const (
	ReadFull        = "full"
	ReadIncremental = "incremental"
)

const headSize = 64

// Service produces the event window of one log file. It implements
// interfaces.EventSource.
type Service struct {
	logger    arbor.ILogger
	path      string
	mode      string
	readMode  string
	horizon   time.Duration
	extractor *Extractor
	state     interfaces.StateStorage
	cursor    *models.LogCursor
}

// NewService builds the log event source described by cfg. state is only used
// in incremental read mode and may be nil, in which case the cursor lives in
// memory only.
func NewService(logger arbor.ILogger, cfg common.LogScanConfig, state interfaces.StateStorage) (*Service, error) {
	loc := time.Local
	if cfg.Location != "" {
		l, err := time.LoadLocation(cfg.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to load location %q: %w", cfg.Location, err)
		}
		loc = l
	}

	mode := cfg.Mode
	if mode == "" {
		mode = ModeRecent
	}
	readMode := cfg.ReadMode
	if readMode == "" {
		readMode = ReadFull
	}

	markers := cfg.Markers
	if len(markers) == 0 {
		markers = models.DefaultMarkers()
	}

	return &Service{
		logger:    logger,
		path:      cfg.Path,
		mode:      mode,
		readMode:  readMode,
		horizon:   common.ParseDuration(cfg.Horizon, 180*time.Second),
		extractor: NewExtractor(markers, NewTimestampParser(cfg.TimestampLayouts, loc)),
		state:     state,
	}, nil
}

// Path returns the monitored log file.
func (s *Service) Path() string {
	return s.path
}

// Events returns the current window in source order. On any read failure it
// returns no events and a wrapped error; the caller decides whether to skip.
func (s *Service) Events(ctx context.Context, now time.Time) ([]models.LogEvent, error) {
	start := time.Now()

	var (
		events []models.LogEvent
		err    error
	)
	if s.readMode == ReadIncremental {
		events, err = s.readIncremental(ctx, now)
	} else {
		events, err = s.readFull(ctx, now)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("path", s.path).
		Str("mode", s.mode).
		Str("read_mode", s.readMode).
		Int("events", len(events)).
		Dur("elapsed", time.Since(start)).
		Msg("Log scan complete")

	return events, nil
}

func (s *Service) inWindow(ev models.LogEvent, now time.Time) bool {
	return s.mode == ModeAll || now.Sub(ev.Timestamp) <= s.horizon
}

func (s *Service) readFull(ctx context.Context, now time.Time) ([]models.LogEvent, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s: %w", s.path, err)
	}
	defer f.Close()

	var events []models.LogEvent
	for ev, err := range s.extractor.Scan(ctx, f) {
		if err != nil {
			return nil, fmt.Errorf("failed to scan log %s: %w", s.path, err)
		}
		if s.inWindow(ev, now) {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (s *Service) readIncremental(ctx context.Context, now time.Time) ([]models.LogEvent, error) {
	cursor, err := s.loadCursor(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to load log cursor, reading from start")
		cursor = nil
	}
	if cursor == nil {
		cursor = &models.LogCursor{Path: s.path}
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s: %w", s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat log %s: %w", s.path, err)
	}
	head, err := readHead(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read log %s: %w", s.path, err)
	}

	if info.Size() < cursor.Offset || !strings.HasPrefix(head, cursor.Head) {
		s.logger.Info().
			Str("path", s.path).
			Int("previous_offset", int(cursor.Offset)).
			Int("size", int(info.Size())).
			Msg("Log truncated or rotated, reading from start")
		cursor = &models.LogCursor{Path: s.path}
	}

	if _, err := f.Seek(cursor.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek log %s: %w", s.path, err)
	}

	var events []models.LogEvent
	for _, ev := range cursor.Events {
		if s.inWindow(ev, now) {
			events = append(events, ev)
		}
	}

	pos := &position{offset: cursor.Offset, line: cursor.Lines}
	for ev, err := range s.extractor.scan(ctx, f, pos, true) {
		if err != nil {
			return nil, fmt.Errorf("failed to scan log %s: %w", s.path, err)
		}
		if s.inWindow(ev, now) {
			events = append(events, ev)
		}
	}

	next := &models.LogCursor{
		Path:      s.path,
		Offset:    pos.offset,
		Lines:     pos.line,
		Size:      info.Size(),
		Head:      head,
		Events:    slices.Clone(events),
		UpdatedAt: now,
	}
	s.cursor = next
	if s.state != nil {
		if err := s.state.SaveCursor(ctx, next); err != nil {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to persist log cursor")
		}
	}

	return events, nil
}

func (s *Service) loadCursor(ctx context.Context) (*models.LogCursor, error) {
	if s.cursor != nil || s.state == nil {
		return s.cursor, nil
	}
	return s.state.GetCursor(ctx, s.path)
}

func readHead(f *os.File) (string, error) {
	buf := make([]byte, headSize)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return "", err
	}
	return string(buf[:n]), nil
}
