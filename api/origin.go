package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/cometx/pkg/llm"
)

// DefaultAllowOrigins admits installed Chrome and Firefox extensions.
const DefaultAllowOrigins = "chrome-extension://*,moz-extension://*"

// originPolicy is a parsed allow list. Entries are exact origins
// ("http://localhost:3000"), scheme wildcards ("chrome-extension://*") or
// "*" for any origin.
type originPolicy struct {
	any     bool
	schemes map[string]bool
	exact   map[string]bool
}

func parseOrigins(list string) originPolicy {
	p := originPolicy{schemes: map[string]bool{}, exact: map[string]bool{}}
	for entry := range strings.SplitSeq(list, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
		case entry == "*":
			p.any = true
		case strings.HasSuffix(entry, "://*"):
			p.schemes[strings.TrimSuffix(entry, "://*")] = true
		default:
			p.exact[strings.TrimRight(entry, "/")] = true
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	origin = strings.ToLower(strings.TrimSpace(origin))
	if p.any {
		return true
	}
	if p.exact[strings.TrimRight(origin, "/")] {
		return true
	}
	scheme, rest, ok := strings.Cut(origin, "://")
	return ok && rest != "" && p.schemes[scheme]
}

// checkOrigin rejects browser requests from origins outside the allow list.
// Requests without an Origin header (CLI tools, scripts) pass.
func (s *Server) checkOrigin(c *fiber.Ctx) error {
	origin := c.Get(fiber.HeaderOrigin)
	if origin == "" || s.origins.allows(origin) {
		return c.Next()
	}
	s.logger.Warn("request from disallowed origin", "origin", origin, "path", c.Path())
	return c.Status(fiber.StatusForbidden).JSON(llm.ErrorResponse{Error: "origin not allowed"})
}

// requireJSON rejects bodies not declared as JSON. Browsers send text/plain
// and form bodies cross-origin without a preflight; application/json always
// needs one.
func requireJSON(c *fiber.Ctx) error {
	if !c.Is("json") {
		return c.Status(fiber.StatusUnsupportedMediaType).
			JSON(llm.ErrorResponse{Error: "Content-Type must be application/json"})
	}
	return c.Next()
}
