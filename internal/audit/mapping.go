package audit

import (
	"net/http"
	"strings"
)

// ActionResource holds action and resource derived from an HTTP route.
type ActionResource struct {
	Action   string
	Resource string
}

// ParseRoute returns action and resource for an HTTP method and path
// (e.g. POST /events -> create/event, GET /auth/sessions -> list/session).
// Auth routes are mapped to explicit actions on resource "session".
func ParseRoute(method, path string) ActionResource {
	path = strings.TrimSuffix(path, "/")
	switch {
	case path == "/auth/login":
		return ActionResource{Action: "login", Resource: "session"}
	case path == "/auth/logout":
		return ActionResource{Action: "logout", Resource: "session"}
	case path == "/auth/register":
		return ActionResource{Action: "register", Resource: "user"}
	case path == "/auth/revoke-all-sessions":
		return ActionResource{Action: "revoke_all", Resource: "session"}
	case path == "/auth/sessions":
		return ActionResource{Action: "list", Resource: "session"}
	}
	resource := pathResource(path)
	return ActionResource{Action: methodToAction(method, path), Resource: resource}
}

func pathResource(path string) string {
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return "unknown"
	}
	// /events -> event, /events/{id}/publish -> event
	return strings.TrimSuffix(segs[0], "s")
}

func methodToAction(method, path string) string {
	if strings.HasSuffix(path, "/publish") {
		return "publish"
	}
	switch method {
	case http.MethodGet:
		return "get"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
