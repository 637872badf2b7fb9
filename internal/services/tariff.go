package services

import (
	"fmt"
	"math"
	"time"

	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/panel"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// billingMonthDays is the fixed month length used for per-day price
// normalization. Calendar months are intentionally not used; the skew for
// 28/31-day months is accepted.
const billingMonthDays = 30

// DaysLeft returns the whole days remaining until expiry, rounded up,
// never negative
func DaysLeft(expiresAt, now time.Time) int {
	diff := expiresAt.Sub(now)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// ProratedDiff is the balance delta for switching from oldPrice to newPrice
// with daysLeft remaining, rounded to the nearest cent. Negative values are
// downgrade refunds.
func ProratedDiff(oldPrice, newPrice float64, daysLeft int) float64 {
	diff := decimal.NewFromFloat(newPrice).
		Sub(decimal.NewFromFloat(oldPrice)).
		Div(decimal.NewFromInt(billingMonthDays)).
		Mul(decimal.NewFromInt(int64(daysLeft))).
		Round(2)
	f, _ := diff.Float64()
	return f
}

// RenewalCost is price x months, rounded to the nearest cent
func RenewalCost(price float64, months int) float64 {
	cost := decimal.NewFromFloat(price).
		Mul(decimal.NewFromInt(int64(months))).
		Round(2)
	f, _ := cost.Float64()
	return f
}

// TariffChangeResult summarizes an applied tariff change
type TariffChangeResult struct {
	DaysLeft   int     `json:"days_left"`
	CostDiff   float64 `json:"cost_diff"`
	NewBalance float64 `json:"new_balance"`
}

// TariffService runs plan changes and renewals. The remote resource patch
// always happens strictly before any local balance or snapshot write, so a
// failed patch leaves local state untouched.
type TariffService struct {
	db     *gorm.DB
	panel  PanelPort
	ledger *Ledger
}

// NewTariffService creates the tariff workflow service
func NewTariffService(db *gorm.DB, p PanelPort, ledger *Ledger) *TariffService {
	return &TariffService{db: db, panel: p, ledger: ledger}
}

// ChangeTariff switches a server to a new plan, prorating the cost
// difference over the remaining days. isAdmin skips the balance check.
func (s *TariffService) ChangeTariff(server *models.Server, newPlan *models.Plan, isAdmin bool) (*TariffChangeResult, error) {
	run := startRun(s.db, models.WorkflowKindTariffChange, server.UserID, &server.ID, "compute_proration")

	now := time.Now()
	daysLeft := DaysLeft(server.ExpiresAt, now)
	costDiff := ProratedDiff(server.Price, newPlan.Price, daysLeft)

	// Fail closed before any mutation
	if !isAdmin && costDiff > 0 {
		var user models.User
		if err := s.db.First(&user, server.UserID).Error; err != nil {
			finishRun(s.db, run, err)
			return nil, err
		}
		if user.Balance < costDiff {
			finishRun(s.db, run, ErrInsufficientFunds)
			return nil, ErrInsufficientFunds
		}
	}

	// Remote patch strictly before local writes
	if server.Provisioned() {
		advanceRun(s.db, run, "remote_build_patch")
		if err := s.patchRemoteBuild(*server.PanelServerID, newPlan); err != nil {
			finishRun(s.db, run, err)
			return nil, err
		}
	}

	advanceRun(s.db, run, "apply_balance")
	var user models.User
	if err := s.db.First(&user, server.UserID).Error; err != nil {
		finishRun(s.db, run, err)
		return nil, err
	}
	newBalance := user.Balance

	// Admin changes are free for the owner; only self-service switches move money
	if !isAdmin && math.Abs(costDiff) > 0.01 {
		var err error
		newBalance, err = s.ledger.Apply(DeltaRequest{
			UserID:      server.UserID,
			Amount:      -costDiff,
			Type:        models.TransactionTypeTariffChange,
			Description: fmt.Sprintf("Plan change %s -> %s (%d days left)", server.PlanName, newPlan.Name, daysLeft),
			ServerID:    &server.ID,
		})
		if err != nil {
			finishRun(s.db, run, err)
			return nil, err
		}
	}

	advanceRun(s.db, run, "update_snapshot")
	res := s.db.Model(&models.Server{}).
		Where("id = ? AND version = ?", server.ID, server.Version).
		Updates(map[string]interface{}{
			"plan_id":   newPlan.ID,
			"plan_name": newPlan.Name,
			"plan_tier": newPlan.Tier,
			"ram":       newPlan.RAM,
			"cores":     newPlan.Cores,
			"disk":      newPlan.Disk,
			"price":     newPlan.Price,
			"version":   server.Version + 1,
		})
	if res.Error != nil {
		finishRun(s.db, run, res.Error)
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		finishRun(s.db, run, ErrVersionConflict)
		return nil, ErrVersionConflict
	}

	finishRun(s.db, run, nil)

	return &TariffChangeResult{
		DaysLeft:   daysLeft,
		CostDiff:   costDiff,
		NewBalance: newBalance,
	}, nil
}

// PatchRemoteResources pushes new ram/cores/disk to the panel for an
// admin resource edit
func (s *TariffService) PatchRemoteResources(panelServerID, ram, cores, disk int) error {
	remote, err := s.panel.GetServer(panelServerID)
	if err != nil {
		return err
	}
	return s.panel.UpdateServerBuild(panelServerID, panel.BuildUpdate{
		AllocationID: remote.AllocationID,
		Limits: panel.Limits{
			Memory: ram,
			Swap:   0,
			Disk:   disk,
			IO:     500,
			CPU:    cores * 100,
		},
		Features: panel.FeatureLimits{
			Databases:   5,
			Backups:     5,
			Allocations: 5,
		},
	})
}

func (s *TariffService) patchRemoteBuild(panelServerID int, plan *models.Plan) error {
	return s.PatchRemoteResources(panelServerID, plan.RAM, plan.Cores, plan.Disk)
}

// Renew extends a server by whole months at its snapshot price. The new
// expiry counts from whichever is later, now or the current expiry.
func (s *TariffService) Renew(server *models.Server, months int, isAdmin bool) (float64, error) {
	if months < 1 {
		months = 1
	}
	cost := RenewalCost(server.Price, months)

	newBalance, err := s.ledger.Apply(DeltaRequest{
		UserID:        server.UserID,
		Amount:        -cost,
		Type:          models.TransactionTypeRenewal,
		Description:   fmt.Sprintf("Renewal of %s for %d month(s)", server.Name, months),
		ServerID:      &server.ID,
		AllowNegative: isAdmin,
	})
	if err != nil {
		return 0, err
	}

	base := server.ExpiresAt
	if now := time.Now(); base.Before(now) {
		base = now
	}
	newExpiry := base.AddDate(0, 0, billingMonthDays*months)

	res := s.db.Model(&models.Server{}).
		Where("id = ? AND version = ?", server.ID, server.Version).
		Updates(map[string]interface{}{
			"expires_at":         newExpiry,
			"status":             models.ServerStatusActive,
			"expiry_notified_at": nil,
			"version":            server.Version + 1,
		})
	if res.Error != nil {
		return newBalance, res.Error
	}
	if res.RowsAffected == 0 {
		return newBalance, ErrVersionConflict
	}

	// Bring a suspended instance back up; failure here does not undo the
	// renewal, the expiry sweep retries suspension state later
	if server.Provisioned() && server.Status == models.ServerStatusSuspended {
		_ = s.panel.UnsuspendServer(*server.PanelServerID)
	}

	server.ExpiresAt = newExpiry
	server.Status = models.ServerStatusActive
	server.Version++

	return newBalance, nil
}
