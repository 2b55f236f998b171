package asaas

import "strings"

// Env selects which Asaas deployment a request talks to.
type Env string

const (
	EnvSandbox    Env = "sandbox"
	EnvProduction Env = "production"
)

func (e Env) BaseURL() string {
	if e == EnvProduction {
		return "https://api.asaas.com/v3"
	}
	return "https://api-sandbox.asaas.com/v3"
}

// ResolveEnv picks the environment for one request from explicit signals:
// a forced override header wins, then a production host/origin match, then
// the deployment mode when no origin information is present at all.
func ResolveEnv(forced, origin, host, deployEnv string, productionHosts []string) Env {
	switch strings.ToLower(strings.TrimSpace(forced)) {
	case string(EnvSandbox):
		return EnvSandbox
	case string(EnvProduction):
		return EnvProduction
	}
	origin = strings.ToLower(origin)
	host = strings.ToLower(host)
	for _, h := range productionHosts {
		h = strings.ToLower(h)
		if h == "" {
			continue
		}
		if strings.Contains(origin, h) || strings.Contains(host, h) {
			return EnvProduction
		}
	}
	if deployEnv == "production" && origin == "" && host == "" {
		return EnvProduction
	}
	return EnvSandbox
}
