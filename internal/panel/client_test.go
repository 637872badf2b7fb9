package panel

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key")
}

func TestCallSendsAuthHeader(t *testing.T) {
	var gotAuth, gotAccept, gotPath string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotPath = r.URL.Path
		w.Write([]byte(`{"object":"null_resource"}`))
	})

	if _, err := c.Call("GET", "/nodes", nil); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Errorf("accept = %q", gotAccept)
	}
	if gotPath != "/api/application/nodes" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestCallNoContent(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	res, err := c.Call("DELETE", "/servers/1", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.Exists() {
		t.Errorf("expected empty result, got %s", res.Raw)
	}
}

func TestCallLoginPageMeansAuthFailure(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><h1>Login to continue</h1></body></html>`))
	})

	_, err := c.Call("GET", "/nodes", nil)
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}

func TestCallHTMLErrorPageIsNotAuthFailure(t *testing.T) {
	// A gateway error page that happens to link to a login route must stay
	// an APIError, otherwise operators chase the wrong key
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html><body><h1>502 Bad Gateway</h1><a href="/auth/login">login</a></body></html>`))
	})

	_, err := c.Call("GET", "/nodes", nil)
	if errors.Is(err, ErrAuthFailed) {
		t.Fatal("502 error page treated as auth failure")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d", apiErr.Status)
	}
}

func TestCallUnauthorizedHTMLMeansAuthFailure(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`<html><body>Unauthenticated</body></html>`))
	})

	_, err := c.Call("GET", "/nodes", nil)
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}

func TestCallAggregatesErrorList(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"errors":[{"code":"ValidationException","detail":"The name field is required."},{"code":"QuotaException"}]}`))
	})

	_, err := c.Call("POST", "/servers", map[string]string{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", apiErr.Status)
	}
	want := "The name field is required.; QuotaException"
	if apiErr.Message != want {
		t.Errorf("message = %q, want %q", apiErr.Message, want)
	}
}

func TestCallUnknownError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{}`))
	})

	_, err := c.Call("GET", "/nodes", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Message != "unknown panel error" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestCallTimeout(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	c.http.Timeout = 50 * time.Millisecond

	_, err := c.Call("GET", "/nodes", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestFindUserByEmailExactMatch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter[email]"); got != "steve@example.com" {
			t.Errorf("filter = %q", got)
		}
		// The filter matches substrings remotely; only the exact email counts
		w.Write([]byte(`{"data":[
			{"attributes":{"id":7,"email":"notsteve@example.com","username":"imposter"}},
			{"attributes":{"id":9,"email":"steve@example.com","username":"steve"}}
		]}`))
	})

	user, err := c.FindUserByEmail("steve@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if user == nil || user.ID != 9 || user.Username != "steve" {
		t.Errorf("user = %+v", user)
	}
}

func TestFindUserByEmailNoMatch(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	})

	user, err := c.FindUserByEmail("ghost@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
}

func TestListEggsCollectsVariables(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("include"); got != "variables" {
			t.Errorf("include = %q", got)
		}
		w.Write([]byte(`{"data":[{"attributes":{
			"id":3,"name":"Paper","docker_image":"img/java17","startup":"java -jar {{SERVER_JARFILE}}",
			"relationships":{"variables":{"data":[
				{"attributes":{"env_variable":"SERVER_JARFILE","default_value":"server.jar"}},
				{"attributes":{"env_variable":"BUILD_NUMBER","default_value":"latest"}}
			]}}
		}}]}`))
	})

	eggs, err := c.ListEggs(1)
	if err != nil {
		t.Fatalf("ListEggs: %v", err)
	}
	if len(eggs) != 1 {
		t.Fatalf("eggs = %d", len(eggs))
	}
	egg := eggs[0]
	if egg.ID != 3 || egg.NestID != 1 || egg.Name != "Paper" {
		t.Errorf("egg = %+v", egg)
	}
	if len(egg.Variables) != 2 || egg.Variables[0].EnvVariable != "SERVER_JARFILE" {
		t.Errorf("variables = %+v", egg.Variables)
	}
}

func TestGetServerResolvesAllocation(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"attributes":{
			"id":501,"identifier":"abc123ef","uuid":"aaaa-bbbb","node":2,"user":9,"name":"survival",
			"allocation":21,
			"limits":{"memory":4096,"swap":0,"disk":20480,"io":500,"cpu":200},
			"relationships":{"allocations":{"data":[
				{"attributes":{"id":20,"ip":"10.0.0.1","port":25564}},
				{"attributes":{"id":21,"ip":"10.0.0.2","alias":"play.example.com","port":25565}}
			]}}
		}}`))
	})

	server, err := c.GetServer(501)
	if err != nil {
		t.Fatalf("GetServer: %v", err)
	}
	if server.AllocationID != 21 {
		t.Errorf("allocation = %d", server.AllocationID)
	}
	if server.IP != "play.example.com" || server.Port != 25565 {
		t.Errorf("binding = %s:%d", server.IP, server.Port)
	}
	if server.Limits.Memory != 4096 || server.Limits.CPU != 200 {
		t.Errorf("limits = %+v", server.Limits)
	}
}

func TestDeleteServerForceFallback(t *testing.T) {
	var paths []string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if len(paths) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errors":[{"detail":"Server is installing."}]}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.DeleteServer(9, true); err != nil {
		t.Fatalf("DeleteServer: %v", err)
	}
	if len(paths) != 2 || paths[1] != "/api/application/servers/9/force" {
		t.Errorf("paths = %v", paths)
	}
}

func TestDeleteServerNoForce(t *testing.T) {
	var calls int
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"detail":"Server is installing."}]}`))
	})

	if err := c.DeleteServer(9, false); err == nil {
		t.Fatal("expected delete failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want no force retry", calls)
	}
}
