package services

import (
	"time"

	"github.com/luminahost/backend/internal/logger"
	"github.com/luminahost/backend/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// graceBeforeDeletion is how long a suspended server survives past expiry
// before the remote instance is deleted
const graceBeforeDeletion = 72 * time.Hour

// ExpiryService sweeps servers hourly: warns before expiry, auto-renews or
// suspends on expiry, deletes after the grace period.
type ExpiryService struct {
	db     *gorm.DB
	panel  PanelPort
	tariff *TariffService
	outbox *Outbox
	cron   *cron.Cron
}

// NewExpiryService creates the expiry sweeper
func NewExpiryService(db *gorm.DB, p PanelPort, tariff *TariffService, outbox *Outbox) *ExpiryService {
	return &ExpiryService{
		db:     db,
		panel:  p,
		tariff: tariff,
		outbox: outbox,
		cron:   cron.New(),
	}
}

// Start schedules the hourly sweep
func (s *ExpiryService) Start() {
	s.cron.AddFunc("@hourly", s.Sweep)
	s.cron.Start()
	logger.Info("expiry sweep scheduled")
}

// Stop halts the schedule; a running sweep finishes
func (s *ExpiryService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep runs one pass over all servers
func (s *ExpiryService) Sweep() {
	now := time.Now()
	s.notifyExpiring(now)
	s.handleExpired(now)
	s.purgeLapsed(now)
}

// notifyExpiring emails owners of servers expiring within 24h, once per cycle
func (s *ExpiryService) notifyExpiring(now time.Time) {
	var servers []models.Server
	s.db.Preload("User").
		Where("status = ? AND expires_at > ? AND expires_at <= ? AND expiry_notified_at IS NULL",
			models.ServerStatusActive, now, now.Add(24*time.Hour)).
		Find(&servers)

	for i := range servers {
		srv := &servers[i]
		if srv.User != nil && srv.User.Email != "" {
			s.outbox.Enqueue(ExpiryNoticeMail(srv.User.Email, srv.Name, srv.ExpiresAt))
		}
		s.db.Model(srv).Update("expiry_notified_at", now)
	}
}

// handleExpired auto-renews when enabled and funded, otherwise suspends
func (s *ExpiryService) handleExpired(now time.Time) {
	var servers []models.Server
	s.db.Preload("User").
		Where("status = ? AND expires_at <= ?", models.ServerStatusActive, now).
		Find(&servers)

	for i := range servers {
		srv := &servers[i]

		if srv.AutoRenew && srv.User != nil && srv.User.Balance >= srv.Price {
			if _, err := s.tariff.Renew(srv, 1, false); err == nil {
				logger.Info("server auto-renewed", zap.Uint("server_id", srv.ID))
				continue
			} else {
				logger.Warn("auto-renew failed", zap.Uint("server_id", srv.ID), zap.Error(err))
			}
		}

		if srv.Provisioned() {
			if err := s.panel.SuspendServer(*srv.PanelServerID); err != nil {
				logger.Error("remote suspend failed", zap.Uint("server_id", srv.ID), zap.Error(err))
				continue
			}
		}
		s.db.Model(srv).Update("status", models.ServerStatusSuspended)
		logger.Info("server suspended after expiry", zap.Uint("server_id", srv.ID))
	}
}

// purgeLapsed deletes remote instances past the grace period
func (s *ExpiryService) purgeLapsed(now time.Time) {
	var servers []models.Server
	s.db.Where("status = ? AND expires_at <= ?",
		models.ServerStatusSuspended, now.Add(-graceBeforeDeletion)).
		Find(&servers)

	for i := range servers {
		srv := &servers[i]
		if srv.Provisioned() {
			if err := s.panel.DeleteServer(*srv.PanelServerID, true); err != nil {
				logger.Error("remote delete failed", zap.Uint("server_id", srv.ID), zap.Error(err))
				continue
			}
		}
		s.db.Model(srv).Updates(map[string]interface{}{
			"status":          models.ServerStatusExpired,
			"panel_server_id": nil,
		})
		logger.Info("expired server purged", zap.Uint("server_id", srv.ID))
	}
}
