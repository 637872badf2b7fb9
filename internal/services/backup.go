package services

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/luminahost/backend/internal/config"
	"github.com/luminahost/backend/internal/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// backupRetention is how many local dump files are kept
const backupRetention = 7

// BackupService dumps the database daily and uploads the dump over FTP when
// a backup host is configured
type BackupService struct {
	cfg  *config.Config
	cron *cron.Cron
}

// NewBackupService creates the backup scheduler
func NewBackupService(cfg *config.Config) *BackupService {
	return &BackupService{
		cfg:  cfg,
		cron: cron.New(),
	}
}

// Start schedules the daily backup at the configured hour
func (s *BackupService) Start() {
	spec := fmt.Sprintf("0 %d * * *", s.cfg.BackupHour)
	s.cron.AddFunc(spec, func() {
		if err := s.RunBackup(); err != nil {
			logger.Error("backup failed", zap.Error(err))
		}
	})
	s.cron.Start()
	logger.Info("backup schedule started", zap.Int("hour", s.cfg.BackupHour))
}

// Stop halts the schedule
func (s *BackupService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunBackup performs one dump-upload-prune cycle
func (s *BackupService) RunBackup() error {
	if err := os.MkdirAll(s.cfg.BackupDir, 0o750); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	filename := fmt.Sprintf("luminahost_%s.dump", time.Now().Format("20060102_150405"))
	path := filepath.Join(s.cfg.BackupDir, filename)

	cmd := exec.Command("pg_dump",
		"-Fc",
		"-h", s.cfg.DBHost,
		"-p", fmt.Sprintf("%d", s.cfg.DBPort),
		"-U", s.cfg.DBUser,
		"-f", path,
		s.cfg.DBName,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+s.cfg.DBPassword)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pg_dump failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	logger.Info("database dump written", zap.String("file", path))

	if s.cfg.FTPHost != "" {
		if err := s.upload(path, filename); err != nil {
			// Local dump survives even when the upload fails
			logger.Error("backup upload failed", zap.Error(err))
		}
	}

	s.prune()
	return nil
}

// upload pushes the dump to the configured FTP target
func (s *BackupService) upload(path, filename string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.FTPHost, s.cfg.FTPPort)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("FTP dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(s.cfg.FTPUser, s.cfg.FTPPass); err != nil {
		return fmt.Errorf("FTP login: %w", err)
	}

	if s.cfg.FTPPath != "" {
		if err := conn.ChangeDir(s.cfg.FTPPath); err != nil {
			if err := conn.MakeDir(s.cfg.FTPPath); err != nil {
				return fmt.Errorf("FTP mkdir: %w", err)
			}
			if err := conn.ChangeDir(s.cfg.FTPPath); err != nil {
				return fmt.Errorf("FTP chdir: %w", err)
			}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := conn.Stor(filename, f); err != nil {
		return fmt.Errorf("FTP store: %w", err)
	}

	logger.Info("backup uploaded", zap.String("file", filename))
	return nil
}

// prune removes local dumps beyond the retention count, oldest first
func (s *BackupService) prune() {
	entries, err := os.ReadDir(s.cfg.BackupDir)
	if err != nil {
		return
	}

	var dumps []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".dump") {
			dumps = append(dumps, e.Name())
		}
	}
	if len(dumps) <= backupRetention {
		return
	}

	sort.Strings(dumps)
	for _, name := range dumps[:len(dumps)-backupRetention] {
		os.Remove(filepath.Join(s.cfg.BackupDir, name))
	}
}
