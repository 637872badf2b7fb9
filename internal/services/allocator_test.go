package services

import (
	"errors"
	"testing"

	"github.com/luminahost/backend/internal/panel"
)

func TestFindAllocationPicksFirstFreeNode(t *testing.T) {
	fake := newFakePanel()
	fake.nodes = []panel.Node{{ID: 1}, {ID: 2}, {ID: 3}}
	fake.allocations[1] = []panel.Allocation{{ID: 10, Assigned: true}}
	fake.allocations[2] = []panel.Allocation{
		{ID: 20, Assigned: true},
		{ID: 21, IP: "10.0.0.2", Port: 25565, Assigned: false},
	}
	fake.allocations[3] = []panel.Allocation{{ID: 30, Assigned: false}}

	result, err := NewAllocator(fake).FindAllocation()
	if err != nil {
		t.Fatalf("FindAllocation: %v", err)
	}
	if result.NodeID != 2 {
		t.Errorf("node = %d, want 2", result.NodeID)
	}
	if result.AllocationID != 21 {
		t.Errorf("allocation = %d, want 21", result.AllocationID)
	}
	if result.IP != "10.0.0.2" || result.Port != 25565 {
		t.Errorf("binding = %s:%d, want 10.0.0.2:25565", result.IP, result.Port)
	}
}

func TestFindAllocationSkipsFlakyNodes(t *testing.T) {
	fake := newFakePanel()
	fake.nodes = []panel.Node{{ID: 1}, {ID: 2}}
	fake.allocErrs[1] = errFlaky
	fake.allocations[2] = []panel.Allocation{{ID: 20, Assigned: false}}

	result, err := NewAllocator(fake).FindAllocation()
	if err != nil {
		t.Fatalf("FindAllocation: %v", err)
	}
	if result.NodeID != 2 {
		t.Errorf("node = %d, want 2", result.NodeID)
	}
}

func TestFindAllocationExhausted(t *testing.T) {
	fake := newFakePanel()
	fake.nodes = []panel.Node{{ID: 1}, {ID: 2}}
	fake.allocations[1] = []panel.Allocation{{ID: 10, Assigned: true}}
	fake.allocations[2] = []panel.Allocation{{ID: 20, Assigned: true}}

	_, err := NewAllocator(fake).FindAllocation()
	if !errors.Is(err, ErrNoAllocations) {
		t.Fatalf("err = %v, want ErrNoAllocations", err)
	}
}

func TestFindAllocationPrefersAlias(t *testing.T) {
	fake := newFakePanel()
	fake.nodes = []panel.Node{{ID: 1}}
	fake.allocations[1] = []panel.Allocation{
		{ID: 10, IP: "10.0.0.1", Alias: "play.example.com", Port: 25565, Assigned: false},
	}

	result, err := NewAllocator(fake).FindAllocation()
	if err != nil {
		t.Fatalf("FindAllocation: %v", err)
	}
	if result.IP != "play.example.com" {
		t.Errorf("ip = %q, want alias", result.IP)
	}
}

func TestFindEggExcludesProxyTemplates(t *testing.T) {
	fake := newFakePanel()
	fake.nests = []panel.Nest{{ID: 1}}
	fake.eggs[1] = []panel.Egg{
		{ID: 1, Name: "Paper-BungeeCord", DockerImage: "img/proxy"},
		{ID: 2, Name: "Paper", DockerImage: "img/paper", Startup: "java -jar server.jar"},
	}

	egg, err := NewAllocator(fake).FindEgg("paper")
	if err != nil {
		t.Fatalf("FindEgg: %v", err)
	}
	if egg.EggID != 2 {
		t.Errorf("egg = %d (%s), want 2 (Paper)", egg.EggID, egg.Name)
	}
}

func TestFindEggLooseMatchWhenOnlyProxyMatches(t *testing.T) {
	fake := newFakePanel()
	fake.nests = []panel.Nest{{ID: 1}}
	fake.eggs[1] = []panel.Egg{
		{ID: 1, Name: "Velocity Proxy"},
		{ID: 2, Name: "Forge"},
	}

	egg, err := NewAllocator(fake).FindEgg("velocity")
	if err != nil {
		t.Fatalf("FindEgg: %v", err)
	}
	if egg.EggID != 1 {
		t.Errorf("egg = %d, want loose match 1", egg.EggID)
	}
}

func TestFindEggFallsBackToFirstEgg(t *testing.T) {
	fake := newFakePanel()
	fake.nests = []panel.Nest{{ID: 1}, {ID: 2}}
	fake.eggs[1] = []panel.Egg{{ID: 5, Name: "Vanilla"}}
	fake.eggs[2] = []panel.Egg{{ID: 6, Name: "Forge"}}

	egg, err := NewAllocator(fake).FindEgg("nonexistent-core")
	if err != nil {
		t.Fatalf("FindEgg: %v", err)
	}
	if egg.EggID != 5 {
		t.Errorf("egg = %d, want first egg 5", egg.EggID)
	}
}

func TestFindEggSkipsFlakyNests(t *testing.T) {
	fake := newFakePanel()
	fake.nests = []panel.Nest{{ID: 1}, {ID: 2}}
	fake.eggErrs[1] = errFlaky
	fake.eggs[2] = []panel.Egg{{ID: 6, Name: "Paper"}}

	egg, err := NewAllocator(fake).FindEgg("paper")
	if err != nil {
		t.Fatalf("FindEgg: %v", err)
	}
	if egg.EggID != 6 {
		t.Errorf("egg = %d, want 6", egg.EggID)
	}
}

func TestFindEggNoEggsAnywhere(t *testing.T) {
	fake := newFakePanel()
	fake.nests = []panel.Nest{{ID: 1}}

	_, err := NewAllocator(fake).FindEgg("paper")
	if !errors.Is(err, ErrNoEggs) {
		t.Fatalf("err = %v, want ErrNoEggs", err)
	}
}

func TestFindEggCollectsEnvironment(t *testing.T) {
	fake := newFakePanel()
	fake.nests = []panel.Nest{{ID: 1}}
	fake.eggs[1] = []panel.Egg{{
		ID:   1,
		Name: "Paper",
		Variables: []panel.EggVariable{
			{EnvVariable: "SERVER_JARFILE", DefaultValue: "server.jar"},
			{EnvVariable: "BUILD_NUMBER", DefaultValue: "latest"},
		},
	}}

	egg, err := NewAllocator(fake).FindEgg("paper")
	if err != nil {
		t.Fatalf("FindEgg: %v", err)
	}
	if egg.Environment["SERVER_JARFILE"] != "server.jar" || egg.Environment["BUILD_NUMBER"] != "latest" {
		t.Errorf("environment = %v", egg.Environment)
	}
}
