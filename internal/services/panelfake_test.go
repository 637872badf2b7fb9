package services

import (
	"errors"
	"fmt"

	"github.com/luminahost/backend/internal/panel"
)

// fakePanel is a scriptable PanelPort for workflow tests. Calls records the
// order of operations so ordering invariants can be asserted.
type fakePanel struct {
	Calls []string

	nodes       []panel.Node
	allocations map[int][]panel.Allocation
	allocErrs   map[int]error
	nests       []panel.Nest
	eggs        map[int][]panel.Egg
	eggErrs     map[int]error

	users   map[string]*panel.RemoteUser
	nextUID int

	createServerErr error
	createdServers  []panel.CreateServerRequest

	buildErr     error
	buildUpdates []panel.BuildUpdate

	remoteServer *panel.RemoteServer
	getServerErr error

	suspendErr error
	suspended  []int
	resumed    []int
	deleted    []int
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		allocations: make(map[int][]panel.Allocation),
		allocErrs:   make(map[int]error),
		eggs:        make(map[int][]panel.Egg),
		eggErrs:     make(map[int]error),
		users:       make(map[string]*panel.RemoteUser),
		nextUID:     100,
	}
}

func (f *fakePanel) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *fakePanel) FindUserByEmail(email string) (*panel.RemoteUser, error) {
	f.record("FindUserByEmail")
	return f.users[email], nil
}

func (f *fakePanel) CreateUser(req panel.CreateUserRequest) (*panel.RemoteUser, error) {
	f.record("CreateUser")
	f.nextUID++
	u := &panel.RemoteUser{ID: f.nextUID, Email: req.Email, Username: req.Username}
	f.users[req.Email] = u
	return u, nil
}

func (f *fakePanel) ListNodes() ([]panel.Node, error) {
	f.record("ListNodes")
	return f.nodes, nil
}

func (f *fakePanel) ListAllocations(nodeID int) ([]panel.Allocation, error) {
	f.record(fmt.Sprintf("ListAllocations(%d)", nodeID))
	if err := f.allocErrs[nodeID]; err != nil {
		return nil, err
	}
	return f.allocations[nodeID], nil
}

func (f *fakePanel) ListNests() ([]panel.Nest, error) {
	f.record("ListNests")
	return f.nests, nil
}

func (f *fakePanel) ListEggs(nestID int) ([]panel.Egg, error) {
	f.record(fmt.Sprintf("ListEggs(%d)", nestID))
	if err := f.eggErrs[nestID]; err != nil {
		return nil, err
	}
	return f.eggs[nestID], nil
}

func (f *fakePanel) CreateServer(req panel.CreateServerRequest) (*panel.RemoteServer, error) {
	f.record("CreateServer")
	if f.createServerErr != nil {
		return nil, f.createServerErr
	}
	f.createdServers = append(f.createdServers, req)
	return &panel.RemoteServer{
		ID:         501,
		Identifier: "abc123ef",
		UUID:       "aaaa-bbbb-cccc",
		UserID:     req.UserID,
		Name:       req.Name,
	}, nil
}

func (f *fakePanel) GetServer(id int) (*panel.RemoteServer, error) {
	f.record("GetServer")
	if f.getServerErr != nil {
		return nil, f.getServerErr
	}
	if f.remoteServer != nil {
		return f.remoteServer, nil
	}
	return &panel.RemoteServer{ID: id, AllocationID: 7}, nil
}

func (f *fakePanel) UpdateServerBuild(id int, build panel.BuildUpdate) error {
	f.record("UpdateServerBuild")
	if f.buildErr != nil {
		return f.buildErr
	}
	f.buildUpdates = append(f.buildUpdates, build)
	return nil
}

func (f *fakePanel) SuspendServer(id int) error {
	f.record("SuspendServer")
	if f.suspendErr != nil {
		return f.suspendErr
	}
	f.suspended = append(f.suspended, id)
	return nil
}

func (f *fakePanel) UnsuspendServer(id int) error {
	f.record("UnsuspendServer")
	f.resumed = append(f.resumed, id)
	return nil
}

func (f *fakePanel) DeleteServer(id int, force bool) error {
	f.record("DeleteServer")
	f.deleted = append(f.deleted, id)
	return nil
}

var errFlaky = errors.New("connection refused")
