package services

import (
	"strings"
	"testing"

	"github.com/luminahost/backend/internal/models"
	"github.com/luminahost/backend/internal/panel"
)

func TestGeneratePanelPassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		p := GeneratePanelPassword()
		if len(p) != 16 {
			t.Fatalf("password length = %d, want 16", len(p))
		}
		for _, c := range p {
			if !strings.ContainsRune(passwordCharset, c) {
				t.Fatalf("character %q outside charset", c)
			}
		}
		seen[p] = true
	}
	if len(seen) < 2 {
		t.Error("passwords are not random")
	}
}

func TestSanitizePanelUsername(t *testing.T) {
	tests := []struct {
		in         string
		wantPrefix string
	}{
		{"steve", "steve_"},
		{"steve the miner!", "steve_the_miner__"},
		{"Ümläut", "_ml_ut_"},
		{"a.b-c_d", "a.b-c_d_"},
	}

	for _, tt := range tests {
		got := SanitizePanelUsername(tt.in)
		if !strings.HasPrefix(got, tt.wantPrefix) {
			t.Errorf("SanitizePanelUsername(%q) = %q, want prefix %q", tt.in, got, tt.wantPrefix)
		}
	}

	long := strings.Repeat("x", 60)
	got := SanitizePanelUsername(long)
	base := got[:strings.LastIndex(got, "_")]
	if len(base) > 28 {
		t.Errorf("base length = %d, want <= 28", len(base))
	}

	if got := SanitizePanelUsername("月月月"); !strings.HasPrefix(got, "_") {
		t.Errorf("non-latin username = %q", got)
	}
}

func TestEnsurePanelUserReusesExistingAccount(t *testing.T) {
	db := openTestDB(t)
	fake := newFakePanel()
	fake.users["tester@example.com"] = &panel.RemoteUser{ID: 42, Email: "tester@example.com"}

	user := createTestUser(t, db, 0)
	svc := NewProvisionService(db, fake, nil)

	id, err := svc.EnsurePanelUser(user)
	if err != nil {
		t.Fatalf("EnsurePanelUser: %v", err)
	}
	if id != 42 {
		t.Errorf("panel user id = %d, want 42", id)
	}
	for _, call := range fake.Calls {
		if call == "CreateUser" {
			t.Error("created a duplicate panel account")
		}
	}

	var fresh models.User
	db.First(&fresh, user.ID)
	if fresh.PanelUserID == nil || *fresh.PanelUserID != 42 {
		t.Errorf("panel_user_id not persisted: %v", fresh.PanelUserID)
	}

	// Second call short-circuits on the stored id
	fake.Calls = nil
	if _, err := svc.EnsurePanelUser(user); err != nil {
		t.Fatalf("second EnsurePanelUser: %v", err)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("remote calls on cached id: %v", fake.Calls)
	}
}

func TestProvisionHappyPath(t *testing.T) {
	db := openTestDB(t)
	fake := newFakePanel()
	fake.nodes = []panel.Node{{ID: 1}}
	fake.allocations[1] = []panel.Allocation{{ID: 10, IP: "10.0.0.1", Port: 25565}}
	fake.nests = []panel.Nest{{ID: 1}}
	fake.eggs[1] = []panel.Egg{{
		ID: 3, Name: "Paper", DockerImage: "img/java17", Startup: "java -jar {{SERVER_JARFILE}}",
		Variables: []panel.EggVariable{{EnvVariable: "SERVER_JARFILE", DefaultValue: "server.jar"}},
	}}

	user := createTestUser(t, db, 0)
	plan := &models.Plan{Name: "Standard", Price: 160, RAM: 4096, Cores: 2, Disk: 20480}

	svc := NewProvisionService(db, fake, nil)
	result, err := svc.Provision(user, "survival", plan, "paper")
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if result.PanelServerID != 501 || result.NodeID != 1 || result.Port != 25565 {
		t.Errorf("result = %+v", result)
	}
	if result.EggName != "Paper" {
		t.Errorf("egg = %q", result.EggName)
	}

	if len(fake.createdServers) != 1 {
		t.Fatalf("created servers = %d", len(fake.createdServers))
	}
	req := fake.createdServers[0]
	if req.Limits.Memory != 4096 || req.Limits.CPU != 200 || req.Limits.Disk != 20480 {
		t.Errorf("limits = %+v", req.Limits)
	}
	if req.Limits.Swap != 0 || req.Limits.IO != 500 {
		t.Errorf("fixed limits = %+v", req.Limits)
	}
	if req.FeatureLimits.Databases != 5 || req.FeatureLimits.Backups != 5 || req.FeatureLimits.Allocations != 5 {
		t.Errorf("feature limits = %+v", req.FeatureLimits)
	}
	if req.Environment["SERVER_JARFILE"] != "server.jar" {
		t.Errorf("environment = %v", req.Environment)
	}

	var run models.WorkflowRun
	if err := db.Where("kind = ?", models.WorkflowKindProvision).First(&run).Error; err != nil {
		t.Fatalf("no workflow run: %v", err)
	}
	if run.Status != models.WorkflowStatusCompleted || run.Step != "create_server" {
		t.Errorf("run = %+v", run)
	}
}

func TestProvisionRecordsFailedStep(t *testing.T) {
	db := openTestDB(t)
	fake := newFakePanel()
	fake.nodes = []panel.Node{{ID: 1}}
	// no free allocations anywhere

	user := createTestUser(t, db, 0)
	plan := &models.Plan{Name: "Standard", Price: 160, RAM: 4096, Cores: 2, Disk: 20480}

	svc := NewProvisionService(db, fake, nil)
	if _, err := svc.Provision(user, "survival", plan, "paper"); err == nil {
		t.Fatal("expected allocation failure")
	}

	var run models.WorkflowRun
	if err := db.Where("kind = ?", models.WorkflowKindProvision).First(&run).Error; err != nil {
		t.Fatalf("no workflow run: %v", err)
	}
	if run.Status != models.WorkflowStatusFailed || run.Step != "find_allocation" {
		t.Errorf("run = %+v", run)
	}
	if run.Error == "" {
		t.Error("failed run has no error message")
	}
}
