// File: internal/observability/audit.go
package observability

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// periodPattern validates the yyyy-mm artifact periods accepted by ArtifactPath.
var periodPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ErrBadPeriod reports a malformed artifact period.
var ErrBadPeriod = errors.New("invalid period: expected yyyy-mm")

// AuditLog writes one JSON line per completed panel action into calendar-month
// artifact files (combined-YYYY-MM.log). lumberjack rotates the main application
// log by size, not by month, so the artifact contract gets its own sink.
type AuditLog struct {
	dir    string
	logger *zap.Logger
	roller *monthRoller
}

// NewAuditLog creates the artifact directory and the month-rolling logger.
func NewAuditLog(dir string) (*AuditLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit dir %q: %w", dir, err)
	}

	roller := &monthRoller{dir: dir, now: time.Now}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), roller, zap.InfoLevel)

	return &AuditLog{
		dir:    dir,
		logger: zap.New(core).Named("audit"),
		roller: roller,
	}, nil
}

// Logger returns the zap logger bound to the current month's artifact file.
func (a *AuditLog) Logger() *zap.Logger {
	return a.logger
}

// ArtifactPath resolves a yyyy-mm period to its artifact file path.
// It returns an error for malformed periods and os.ErrNotExist when the
// artifact has never been written.
func (a *AuditLog) ArtifactPath(period string) (string, error) {
	if !periodPattern.MatchString(period) {
		return "", fmt.Errorf("%w: got %q", ErrBadPeriod, period)
	}
	path := filepath.Join(a.dir, fmt.Sprintf("combined-%s.log", period))
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// Close flushes and closes the current artifact file.
func (a *AuditLog) Close() error {
	_ = a.logger.Sync()
	return a.roller.Close()
}

// monthRoller is a zapcore.WriteSyncer that reopens its file whenever the
// calendar month changes between writes.
type monthRoller struct {
	dir string
	now func() time.Time

	mu    sync.Mutex
	month string
	file  *os.File
}

func (r *monthRoller) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	month := r.now().Format("2006-01")
	if r.file == nil || month != r.month {
		if r.file != nil {
			_ = r.file.Close()
		}
		path := filepath.Join(r.dir, fmt.Sprintf("combined-%s.log", month))
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, fmt.Errorf("failed to open audit artifact %q: %w", path, err)
		}
		r.file = f
		r.month = month
	}
	return r.file.Write(p)
}

func (r *monthRoller) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	return r.file.Sync()
}

func (r *monthRoller) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
