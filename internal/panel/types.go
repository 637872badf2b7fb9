package panel

// RemoteUser is a panel-side user account
type RemoteUser struct {
	ID       int    `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// CreateUserRequest is the payload for creating a panel user
type CreateUserRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// Node is a panel host offering network allocations
type Node struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Allocation is an ip:port binding on a node
type Allocation struct {
	ID       int    `json:"id"`
	IP       string `json:"ip"`
	Alias    string `json:"alias"`
	Port     int    `json:"port"`
	Assigned bool   `json:"assigned"`
}

// Nest is a category of application templates
type Nest struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// EggVariable is a default environment variable of an egg
type EggVariable struct {
	EnvVariable  string `json:"env_variable"`
	DefaultValue string `json:"default_value"`
}

// Egg is an application template: container image, startup command and
// default environment
type Egg struct {
	ID          int           `json:"id"`
	NestID      int           `json:"nest_id"`
	Name        string        `json:"name"`
	DockerImage string        `json:"docker_image"`
	Startup     string        `json:"startup"`
	Variables   []EggVariable `json:"variables"`
}

// Limits are per-server resource limits in panel units
type Limits struct {
	Memory int `json:"memory"`
	Swap   int `json:"swap"`
	Disk   int `json:"disk"`
	IO     int `json:"io"`
	CPU    int `json:"cpu"`
}

// FeatureLimits are per-server quota limits
type FeatureLimits struct {
	Databases   int `json:"databases"`
	Backups     int `json:"backups"`
	Allocations int `json:"allocations"`
}

// CreateServerRequest is the payload for creating a panel server
type CreateServerRequest struct {
	Name          string            `json:"name"`
	UserID        int               `json:"user"`
	EggID         int               `json:"egg"`
	DockerImage   string            `json:"docker_image"`
	Startup       string            `json:"startup"`
	Environment   map[string]string `json:"environment"`
	Limits        Limits            `json:"limits"`
	FeatureLimits FeatureLimits     `json:"feature_limits"`
	AllocationID  int               `json:"allocation_default"`
}

// BuildUpdate is the payload for patching a server's resource build
type BuildUpdate struct {
	AllocationID int           `json:"allocation"`
	Limits       Limits        `json:"limits"`
	Features     FeatureLimits `json:"feature_limits"`
}

// RemoteServer is a provisioned panel server with its network binding
type RemoteServer struct {
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
	UUID       string `json:"uuid"`
	NodeID     int    `json:"node"`
	UserID     int    `json:"user"`
	Name       string `json:"name"`
	Suspended  bool   `json:"suspended"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`

	AllocationID int    `json:"allocation_id"`
	Limits       Limits `json:"limits"`
}
