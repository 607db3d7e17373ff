// Package influx ships simulation telemetry to InfluxDB. When the server
// cannot be reached, points are appended as line protocol to a gzip backup
// file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"

	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/pkg/core"
)

// Measurement names.
const (
	MeasurementStatus    = "sim_status"
	MeasurementFormation = "formation"
)

// RetentionSeconds is the retention applied to a bucket created by Connect.
const RetentionSeconds = 60 * 60 * 24 * 90

var ErrDisabled = errors.New("influx is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg        config.InfluxConfig
	backupPath string
	logger     zerolog.Logger

	mu           sync.Mutex
	client       influxdb2.Client
	writer       influxdb2_api.WriteAPI
	backupFile   *os.File
	backupWriter *gzip.Writer
	valid        bool
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		cfg:        cfg,
		backupPath: backupPath,
		logger:     log.With().Str("component", "influx").Logger(),
	}
}

// URL returns the server address built from the configuration.
func (m *Manager) URL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Valid reports whether points go to the server rather than the backup.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// Connect establishes a connection to InfluxDB and ensures the org and
// bucket exist. An unreachable server switches to the backup writer and is
// not an error.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		m.logger.Warn().Err(err).Str("backupPath", m.backupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.valid = true
	m.logger.Info().Str("url", m.URL()).Str("bucket", m.cfg.Bucket).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.backupWriter != nil {
		return nil
	}
	if m.backupPath == "" {
		return errors.New("influx unreachable and no backup path configured")
	}
	file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.logger.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return fmt.Errorf("creating organization %s: %w", m.cfg.Org, err)
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: RetentionSeconds,
		})
		if err != nil {
			m.logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return fmt.Errorf("creating bucket %s: %w", m.cfg.Bucket, err)
		}
	}
	return nil
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.backupWriter.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Flush pushes buffered points out.
func (m *Manager) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.backupWriter != nil {
		return m.backupWriter.Flush()
	}
	return nil
}

// Close flushes and releases the client and the backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	if m.backupWriter != nil {
		errs = append(errs, m.backupWriter.Close())
		errs = append(errs, m.backupFile.Close())
		m.backupWriter, m.backupFile = nil, nil
	}
	m.valid = false
	return errors.Join(errs...)
}

// StatusPoint builds the simulation summary point. It carries no tags, so
// it is built field by field; NewPoint with a nil tag set writes a stray
// comma into the line protocol.
func StatusPoint(formations, cars, ticks, pendingSave, queuedWrites, observers int, lastTick time.Duration, at time.Time) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementStatus).
		AddField("formations", formations).
		AddField("cars", cars).
		AddField("ticks", ticks).
		AddField("pendingSave", pendingSave).
		AddField("queuedWrites", queuedWrites).
		AddField("observers", observers).
		AddField("lastTickMs", float64(lastTick.Microseconds())/1000).
		SetTime(at)
}

// FormationPoint builds one point per formation, tagged by id.
func FormationPoint(rec core.FormationRecord, speed float32, at time.Time) *influxdb2_write.Point {
	return influxdb2.NewPoint(MeasurementFormation,
		map[string]string{"formation": strconv.FormatUint(uint64(rec.ID), 10)},
		map[string]any{
			"size":      rec.Size,
			"direction": int(rec.Direction),
			"speed":     speed,
		},
		at)
}
