package hooks

import (
	"context"
	"fmt"
)

// DeniedFamily is one tool family the enforcement category refuses, with
// the redirect message surfaced to the agent in the deny reason.
type DeniedFamily struct {
	ToolName string
	Redirect string
}

// RegisterEnforcement binds one enforcement handler per denied tool family.
// Each handler unconditionally denies calls to its tool name, surfacing a
// redirect message in the deny reason. The handler name is "deny-" followed
// by the tool name, e.g. "deny-WebFetch" for the WebFetch tool.
func RegisterEnforcement(d *Dispatcher, families []DeniedFamily) {
	for _, f := range families {
		d.Register(CategoryEnforcement, enforcementName(f.ToolName), denyToolHandler(f))
	}
}

func enforcementName(toolName string) string {
	return "deny-" + toolName
}

func denyToolHandler(f DeniedFamily) Handler {
	return func(_ context.Context, req Request) (Response, error) {
		if req.ToolName != f.ToolName {
			return Allow, nil
		}
		return Deny(fmt.Sprintf("%s is disabled; use %s instead", f.ToolName, f.Redirect)), nil
	}
}

// DefaultDeniedFamilies is the harness's out-of-the-box enforcement policy:
// raw web fetch and raw HTTP calls are redirected to the host's mediated
// fetch tool.
var DefaultDeniedFamilies = []DeniedFamily{
	{ToolName: "WebFetch", Redirect: "the host's mediated fetch tool"},
	{ToolName: "RawHTTP", Redirect: "the host's mediated fetch tool"},
}
