package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"runtime"
	"sync"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/panelops/panelctl/internal/appid"
)

// Build describes the running binary.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"git_commit"`
	Date    string `json:"build_date"`
}

var (
	buildMu  sync.RWMutex
	build    = Build{Version: "dev", Commit: "unknown", Date: "unknown"}
	identity *appidentity.Identity
	upstream string
)

// SetVersionInfo records the ldflags-injected build metadata.
func SetVersionInfo(version, commit, buildDate string) {
	buildMu.Lock()
	defer buildMu.Unlock()
	build = Build{Version: version, Commit: commit, Date: buildDate}
}

// SetAppIdentity sets the identity reported by /version.
func SetAppIdentity(id *appidentity.Identity) {
	buildMu.Lock()
	defer buildMu.Unlock()
	identity = id
}

// SetUpstream records the panel API the gateway forwards to. Only scheme and host are
// reported.
func SetUpstream(baseURL string) {
	buildMu.Lock()
	defer buildMu.Unlock()
	upstream = ""
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		upstream = u.Scheme + "://" + u.Host
	}
}

// VersionResponse is the /version body.
type VersionResponse struct {
	Name     string `json:"name"`
	Build    Build  `json:"build"`
	Go       string `json:"go_version"`
	Platform string `json:"platform"`
	Upstream string `json:"upstream,omitempty"`
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

func currentVersion() VersionResponse {
	buildMu.RLock()
	defer buildMu.RUnlock()

	name := appid.BinaryName
	if identity != nil && identity.BinaryName != "" {
		name = identity.BinaryName
	}
	deps := crucible.GetVersion()
	return VersionResponse{
		Name:     name,
		Build:    build,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		Upstream: upstream,
		Gofulmen: deps.Gofulmen,
		Crucible: deps.Crucible,
	}
}

// VersionHandler serves build metadata.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(currentVersion())
}
