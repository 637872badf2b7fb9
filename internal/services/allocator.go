package services

import (
	"errors"
	"strings"

	"github.com/luminahost/backend/internal/panel"
)

// Errors distinguishing allocator exhaustion from other provisioning failures
var (
	ErrNoAllocations = errors.New("no free allocations available on any node")
	ErrNoEggs        = errors.New("no application templates available on the panel")
)

// proxyKeywords mark reverse-proxy/gateway templates that must not win a
// game-core match
var proxyKeywords = []string{"bungee", "bungeecord", "velocity", "waterfall", "proxy"}

// AllocationResult is a free ip:port binding on a node
type AllocationResult struct {
	NodeID       int
	AllocationID int
	IP           string
	Port         int
}

// EggResult is the chosen application template for server creation
type EggResult struct {
	NestID      int
	EggID       int
	Name        string
	DockerImage string
	Startup     string
	Environment map[string]string
}

// Allocator picks a node allocation and an application template for a
// requested game core
type Allocator struct {
	panel PanelPort
}

// NewAllocator creates an allocator over the given panel
func NewAllocator(p PanelPort) *Allocator {
	return &Allocator{panel: p}
}

// FindAllocation returns the first unassigned allocation across nodes in
// listing order. Per-node listing failures are skipped so one flaky node
// cannot abort the search.
func (a *Allocator) FindAllocation() (*AllocationResult, error) {
	nodes, err := a.panel.ListNodes()
	if err != nil {
		return nil, err
	}

	for _, node := range nodes {
		allocs, err := a.panel.ListAllocations(node.ID)
		if err != nil {
			continue
		}
		for _, alloc := range allocs {
			if !alloc.Assigned {
				ip := alloc.IP
				if alloc.Alias != "" {
					ip = alloc.Alias
				}
				return &AllocationResult{
					NodeID:       node.ID,
					AllocationID: alloc.ID,
					IP:           ip,
					Port:         alloc.Port,
				}, nil
			}
		}
	}

	return nil, ErrNoAllocations
}

// FindEgg searches nests for an egg matching the requested core name.
// Match tiers: name match excluding proxy templates, then a loose name
// match, then the first egg anywhere. Per-nest listing failures are skipped.
func (a *Allocator) FindEgg(coreName string) (*EggResult, error) {
	nests, err := a.panel.ListNests()
	if err != nil {
		return nil, err
	}

	core := strings.ToLower(strings.TrimSpace(coreName))

	var firstEgg *EggResult
	var looseMatch *EggResult

	for _, nest := range nests {
		eggs, err := a.panel.ListEggs(nest.ID)
		if err != nil {
			continue
		}
		for i := range eggs {
			egg := &eggs[i]
			name := strings.ToLower(egg.Name)

			if firstEgg == nil {
				firstEgg = eggResult(nest.ID, egg.ID, egg.Name, egg.DockerImage, egg.Startup, egg.Variables)
			}

			if core == "" || !strings.Contains(name, core) {
				continue
			}

			if looseMatch == nil {
				looseMatch = eggResult(nest.ID, egg.ID, egg.Name, egg.DockerImage, egg.Startup, egg.Variables)
			}

			if !isProxyTemplate(name) {
				return eggResult(nest.ID, egg.ID, egg.Name, egg.DockerImage, egg.Startup, egg.Variables), nil
			}
		}
	}

	if looseMatch != nil {
		return looseMatch, nil
	}
	if firstEgg != nil {
		return firstEgg, nil
	}
	return nil, ErrNoEggs
}

func isProxyTemplate(name string) bool {
	for _, kw := range proxyKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func eggResult(nestID, eggID int, name, image, startup string, vars []panel.EggVariable) *EggResult {
	env := make(map[string]string, len(vars))
	for _, v := range vars {
		env[v.EnvVariable] = v.DefaultValue
	}
	return &EggResult{
		NestID:      nestID,
		EggID:       eggID,
		Name:        name,
		DockerImage: image,
		Startup:     startup,
		Environment: env,
	}
}
