package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/panel"
	"gorm.io/gorm"
)

const passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%"

var usernameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// ProvisionResult is the remote linkage handed back to the caller, which is
// responsible for persisting the local Server row
type ProvisionResult struct {
	PanelServerID int
	Identifier    string
	UUID          string
	NodeID        int
	IP            string
	Port          int
	EggName       string
}

// ProvisionService orchestrates remote server creation: ensure panel user,
// allocate node/egg/allocation, create the server. No step is compensated on
// later failure; the panel user lookup is idempotent so retries reuse it.
type ProvisionService struct {
	db        *gorm.DB
	panel     PanelPort
	allocator *Allocator
	outbox    *Outbox
}

// NewProvisionService creates the provisioning workflow service
func NewProvisionService(db *gorm.DB, p PanelPort, outbox *Outbox) *ProvisionService {
	return &ProvisionService{
		db:        db,
		panel:     p,
		allocator: NewAllocator(p),
		outbox:    outbox,
	}
}

// GeneratePanelPassword returns a random 16-character panel password
func GeneratePanelPassword() string {
	b := make([]byte, 16)
	max := big.NewInt(int64(len(passwordCharset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = passwordCharset[i%len(passwordCharset)]
			continue
		}
		b[i] = passwordCharset[n.Int64()]
	}
	return string(b)
}

// SanitizePanelUsername maps a storefront username onto the panel's
// username charset and appends a random suffix to dodge collisions
func SanitizePanelUsername(username string) string {
	clean := usernameSanitizer.ReplaceAllString(username, "_")
	if len(clean) > 28 {
		clean = clean[:28]
	}
	if clean == "" {
		clean = "user"
	}
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	suffix := int64(0)
	if err == nil {
		suffix = n.Int64()
	}
	return fmt.Sprintf("%s_%d", clean, suffix)
}

// EnsurePanelUser resolves or creates the panel account for a storefront
// user and persists the panel user id locally. Credential emails are queued
// best-effort; their failure never fails provisioning.
func (s *ProvisionService) EnsurePanelUser(user *models.User) (int, error) {
	if user.PanelUserID != nil {
		return *user.PanelUserID, nil
	}

	remote, err := s.panel.FindUserByEmail(user.Email)
	if err != nil {
		return 0, err
	}

	if remote == nil {
		password := GeneratePanelPassword()
		remote, err = s.panel.CreateUser(panel.CreateUserRequest{
			Email:     user.Email,
			Username:  SanitizePanelUsername(user.Username),
			FirstName: user.Username,
			LastName:  "Customer",
			Password:  password,
		})
		if err != nil {
			return 0, err
		}

		if s.outbox != nil {
			s.outbox.Enqueue(PanelCredentialsMail(user.Email, remote.Username, password))
		}
	}

	user.PanelUserID = &remote.ID
	if err := s.db.Model(user).Update("panel_user_id", remote.ID).Error; err != nil {
		return 0, err
	}

	return remote.ID, nil
}

// Provision runs the full workflow for one new server. The caller has
// already validated the order and debited the balance.
func (s *ProvisionService) Provision(user *models.User, serverName string, plan *models.Plan, coreName string) (*ProvisionResult, error) {
	run := startRun(s.db, models.WorkflowKindProvision, user.ID, nil, "ensure_panel_user")

	panelUserID, err := s.EnsurePanelUser(user)
	if err != nil {
		finishRun(s.db, run, err)
		return nil, err
	}

	advanceRun(s.db, run, "find_allocation")
	alloc, err := s.allocator.FindAllocation()
	if err != nil {
		finishRun(s.db, run, err)
		return nil, err
	}

	advanceRun(s.db, run, "find_egg")
	egg, err := s.allocator.FindEgg(coreName)
	if err != nil {
		finishRun(s.db, run, err)
		return nil, err
	}

	advanceRun(s.db, run, "create_server")
	remote, err := s.panel.CreateServer(panel.CreateServerRequest{
		Name:        serverName,
		UserID:      panelUserID,
		EggID:       egg.EggID,
		DockerImage: egg.DockerImage,
		Startup:     egg.Startup,
		Environment: egg.Environment,
		Limits: panel.Limits{
			Memory: plan.RAM,
			Swap:   0,
			Disk:   plan.Disk,
			IO:     500,
			CPU:    plan.Cores * 100,
		},
		FeatureLimits: panel.FeatureLimits{
			Databases:   5,
			Backups:     5,
			Allocations: 5,
		},
		AllocationID: alloc.AllocationID,
	})
	if err != nil {
		finishRun(s.db, run, err)
		return nil, err
	}

	finishRun(s.db, run, nil)

	return &ProvisionResult{
		PanelServerID: remote.ID,
		Identifier:    remote.Identifier,
		UUID:          remote.UUID,
		NodeID:        alloc.NodeID,
		IP:            alloc.IP,
		Port:          alloc.Port,
		EggName:       egg.Name,
	}, nil
}
