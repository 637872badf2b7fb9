package services

import (
	"github.com/luminahost/backend/internal/panel"
)

// PanelPort is the capability surface the workflows need from the remote
// panel. *panel.Client satisfies it; tests substitute fakes.
type PanelPort interface {
	FindUserByEmail(email string) (*panel.RemoteUser, error)
	CreateUser(req panel.CreateUserRequest) (*panel.RemoteUser, error)
	ListNodes() ([]panel.Node, error)
	ListAllocations(nodeID int) ([]panel.Allocation, error)
	ListNests() ([]panel.Nest, error)
	ListEggs(nestID int) ([]panel.Egg, error)
	CreateServer(req panel.CreateServerRequest) (*panel.RemoteServer, error)
	GetServer(id int) (*panel.RemoteServer, error)
	UpdateServerBuild(id int, build panel.BuildUpdate) error
	SuspendServer(id int) error
	UnsuspendServer(id int) error
	DeleteServer(id int, force bool) error
}
