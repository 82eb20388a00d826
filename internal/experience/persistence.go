package experience

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrPersistenceNotConfigured is returned when persistence operations are attempted without configuration
	ErrPersistenceNotConfigured = errors.New("persistence layer not configured")
	// ErrInvalidPersistenceType is returned when an unknown persistence type is specified
	ErrInvalidPersistenceType = errors.New("invalid persistence type")
)

// PersistenceType represents the type of persistence backend
type PersistenceType string

const (
	// PersistenceTypeNone disables persistence
	PersistenceTypeNone PersistenceType = "none"
	// PersistenceTypeFile writes newline delimited protojson files
	PersistenceTypeFile PersistenceType = "file"
	// PersistenceTypeSQLite stores transitions in a SQLite database
	PersistenceTypeSQLite PersistenceType = "sqlite"
)

// PersistenceConfig contains configuration for the persistence layer
type PersistenceConfig struct {
	Type PersistenceType

	// File-based config
	BaseDir          string
	MaxFileSize      int64 // Max size per file in bytes
	RotationInterval time.Duration

	// SQLite config
	SQLitePath string

	// Batch config
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultPersistenceConfig returns a default persistence configuration
func DefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Type:             PersistenceTypeNone,
		BaseDir:          "experiences",
		MaxFileSize:      100 * 1024 * 1024, // 100MB
		RotationInterval: 1 * time.Hour,
		SQLitePath:       "experiences.db",
		BatchSize:        256,
		FlushInterval:    5 * time.Second,
	}
}

// PersistenceLayer defines the interface for persisting transitions
type PersistenceLayer interface {
	// Write persists a batch of transitions
	Write(ctx context.Context, transitions []Transition) error

	// Read retrieves transitions for envID, or all when envID is empty.
	// A limit of zero means no limit.
	Read(ctx context.Context, envID string, limit int) ([]Transition, error)

	// Delete removes persisted transitions of envID
	Delete(ctx context.Context, envID string) error

	// Close cleanly shuts down the persistence layer
	Close() error

	// Stats returns persistence statistics
	Stats() PersistenceStats
}

// PersistenceStats contains statistics about persistence operations
type PersistenceStats struct {
	TotalWritten  int64
	TotalRead     int64
	TotalDeleted  int64
	BytesWritten  int64
	WriteErrors   int64
	ReadErrors    int64
	LastWriteTime time.Time
	LastReadTime  time.Time
}

// NewPersistenceLayer creates a persistence layer based on configuration
func NewPersistenceLayer(ctx context.Context, config PersistenceConfig, logger zerolog.Logger) (PersistenceLayer, error) {
	switch config.Type {
	case PersistenceTypeNone, "":
		return &NullPersistence{}, nil
	case PersistenceTypeFile:
		return NewFilePersistence(config, logger)
	case PersistenceTypeSQLite:
		store := NewSQLitePersistence(config.SQLitePath, logger)
		if err := store.Init(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPersistenceType, config.Type)
	}
}

func marshalTransition(t Transition) ([]byte, error) {
	s, err := t.ToStruct()
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(s)
}

func unmarshalTransition(data []byte) (Transition, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return Transition{}, err
	}
	return TransitionFromStruct(&s)
}

// FilePersistence implements file-based persistence
type FilePersistence struct {
	config PersistenceConfig
	logger zerolog.Logger

	mu    sync.RWMutex
	stats PersistenceStats

	currentFile *os.File
	currentName string
	currentSize int64
	fileIndex   int

	closeChan chan struct{}
	wg        sync.WaitGroup
}

// NewFilePersistence creates a new file-based persistence layer
func NewFilePersistence(config PersistenceConfig, logger zerolog.Logger) (*FilePersistence, error) {
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	fp := &FilePersistence{
		config:    config,
		logger:    logger.With().Str("component", "file_persistence").Logger(),
		closeChan: make(chan struct{}),
	}

	if err := fp.rotateFile(); err != nil {
		return nil, err
	}

	if config.RotationInterval > 0 {
		fp.wg.Add(1)
		go fp.rotationLoop()
	}

	return fp, nil
}

// Write persists a batch of transitions to file
func (fp *FilePersistence) Write(ctx context.Context, transitions []Transition) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.currentFile == nil {
		return ErrPersistenceNotConfigured
	}

	for _, t := range transitions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fp.config.MaxFileSize > 0 && fp.currentSize >= fp.config.MaxFileSize {
			if err := fp.rotateFile(); err != nil {
				fp.stats.WriteErrors++
				return fmt.Errorf("failed to rotate file: %w", err)
			}
		}

		data, err := marshalTransition(t)
		if err != nil {
			fp.stats.WriteErrors++
			return fmt.Errorf("failed to marshal transition: %w", err)
		}

		n, err := fp.currentFile.Write(append(data, '\n'))
		if err != nil {
			fp.stats.WriteErrors++
			return fmt.Errorf("failed to write transition: %w", err)
		}

		fp.currentSize += int64(n)
		fp.stats.TotalWritten++
		fp.stats.BytesWritten += int64(n)
	}

	if err := fp.currentFile.Sync(); err != nil {
		fp.logger.Warn().Err(err).Msg("Failed to sync file")
	}
	fp.stats.LastWriteTime = time.Now()

	fp.logger.Debug().
		Int("batch_size", len(transitions)).
		Int64("file_size", fp.currentSize).
		Msg("Wrote transition batch to file")

	return nil
}

func (fp *FilePersistence) files() ([]string, error) {
	return filepath.Glob(filepath.Join(fp.config.BaseDir, "transitions_*.jsonl"))
}

// Read retrieves transitions from storage
func (fp *FilePersistence) Read(ctx context.Context, envID string, limit int) ([]Transition, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	files, err := fp.files()
	if err != nil {
		fp.stats.ReadErrors++
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var transitions []Transition
	for _, file := range files {
		if limit > 0 && len(transitions) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := fp.scanFile(file, func(t Transition, _ []byte) bool {
			if envID == "" || t.EnvID == envID {
				transitions = append(transitions, t)
			}
			return limit <= 0 || len(transitions) < limit
		})
		if err != nil {
			fp.stats.ReadErrors++
			fp.logger.Warn().Err(err).Str("file", file).Msg("Failed to read transition file")
			continue
		}
	}

	fp.stats.LastReadTime = time.Now()
	fp.stats.TotalRead += int64(len(transitions))
	return transitions, nil
}

// scanFile calls fn for every record in filename until fn returns false
func (fp *FilePersistence) scanFile(filename string, fn func(Transition, []byte) bool) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		t, err := unmarshalTransition(line)
		if err != nil {
			return fmt.Errorf("failed to unmarshal transition: %w", err)
		}
		if !fn(t, line) {
			break
		}
	}
	return scanner.Err()
}

// Delete rewrites every closed file without the records of envID. The
// file currently being written is rotated first so it can be rewritten too.
func (fp *FilePersistence) Delete(ctx context.Context, envID string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := fp.rotateFile(); err != nil {
		return err
	}
	files, err := fp.files()
	if err != nil {
		return err
	}

	for _, file := range files {
		if file == fp.currentName {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var kept [][]byte
		removed := 0
		err := fp.scanFile(file, func(t Transition, line []byte) bool {
			if t.EnvID == envID {
				removed++
			} else {
				kept = append(kept, append([]byte(nil), line...))
			}
			return true
		})
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}

		var out []byte
		for _, line := range kept {
			out = append(out, line...)
			out = append(out, '\n')
		}
		if err := os.WriteFile(file, out, 0644); err != nil {
			return fmt.Errorf("failed to rewrite %s: %w", file, err)
		}
		fp.stats.TotalDeleted += int64(removed)
	}
	return nil
}

// rotateFile closes the current file and opens a new one
func (fp *FilePersistence) rotateFile() error {
	if fp.currentFile != nil {
		if err := fp.currentFile.Close(); err != nil {
			fp.logger.Warn().Err(err).Msg("Failed to close previous file")
		}
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(fp.config.BaseDir, fmt.Sprintf("transitions_%s_%d.jsonl", timestamp, fp.fileIndex))
	fp.fileIndex++

	for {
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			break
		}
		fp.fileIndex++
		filename = filepath.Join(fp.config.BaseDir, fmt.Sprintf("transitions_%s_%d.jsonl", timestamp, fp.fileIndex))
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	fp.currentFile = file
	fp.currentName = filename
	fp.currentSize = 0

	fp.logger.Debug().Str("filename", filename).Msg("Rotated to new transition file")
	return nil
}

// rotationLoop handles periodic file rotation
func (fp *FilePersistence) rotationLoop() {
	defer fp.wg.Done()

	ticker := time.NewTicker(fp.config.RotationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fp.mu.Lock()
			if err := fp.rotateFile(); err != nil {
				fp.logger.Error().Err(err).Msg("Failed to rotate file")
			}
			fp.mu.Unlock()

		case <-fp.closeChan:
			return
		}
	}
}

// Close cleanly shuts down the persistence layer
func (fp *FilePersistence) Close() error {
	close(fp.closeChan)
	fp.wg.Wait()

	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.currentFile != nil {
		err := fp.currentFile.Close()
		fp.currentFile = nil
		return err
	}
	return nil
}

// Stats returns persistence statistics
func (fp *FilePersistence) Stats() PersistenceStats {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	return fp.stats
}

// NullPersistence is a no-op persistence layer
type NullPersistence struct{}

func (n *NullPersistence) Write(ctx context.Context, transitions []Transition) error {
	return nil
}

func (n *NullPersistence) Read(ctx context.Context, envID string, limit int) ([]Transition, error) {
	return nil, nil
}

func (n *NullPersistence) Delete(ctx context.Context, envID string) error {
	return nil
}

func (n *NullPersistence) Close() error {
	return nil
}

func (n *NullPersistence) Stats() PersistenceStats {
	return PersistenceStats{}
}
