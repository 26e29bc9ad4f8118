package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/paularlott/cli"
	"github.com/trustd/trustd/internal/model"
)

// The trust endpoints are registered as POST only; the commands must not
// drift to another verb.
func TestTrustSetCommand_UsesPost(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		json.NewEncoder(w).Encode(model.Device{Fingerprint: "fp-1", TrustScore: 80})
	}))
	defer srv.Close()

	root := &cli.Command{
		Name: "trustd",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", DefaultValue: srv.URL, Global: true},
			&cli.StringFlag{Name: "token", Global: true},
		},
		Commands: []*cli.Command{trustSetCommand()},
	}

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()
	os.Args = []string{"trustd", "trust-set", "fp-1", "80"}

	if err := root.Execute(context.Background()); err != nil {
		t.Fatalf("Command failed: %v", err)
	}

	if method != http.MethodPost {
		t.Errorf("Expected POST, got %s", method)
	}
	if path != "/api/devices/fp-1/trust" {
		t.Errorf("Unexpected path %s", path)
	}
}
