package server

import (
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Iron-Ham/ideaforge/internal/errors"
)

// originMatcher matches Origin headers against glob patterns such as
// "http://localhost:*" or "https://*.example.com".
type originMatcher struct {
	patterns []glob.Glob
	any      bool
}

func newOriginMatcher(patterns []string) (*originMatcher, error) {
	m := &originMatcher{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if p == "*" {
			m.any = true
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.NewValidationError("invalid allowed origin pattern").
				WithField("server.allowed_origins").WithValue(p).WithCause(err)
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

func (m *originMatcher) Match(origin string) bool {
	if origin == "" {
		return false
	}
	if m.any {
		return true
	}
	for _, g := range m.patterns {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

func (s *Server) cors(c *fiber.Ctx) error {
	origin := c.Get(fiber.HeaderOrigin)
	allowed := s.origins.Match(origin)
	if allowed {
		c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
		c.Set(fiber.HeaderVary, fiber.HeaderOrigin)
	}
	if c.Method() != fiber.MethodOptions || c.Get(fiber.HeaderAccessControlRequestMethod) == "" {
		return c.Next()
	}

	// preflight
	if !allowed {
		return c.SendStatus(fiber.StatusForbidden)
	}
	c.Set(fiber.HeaderAccessControlAllowMethods, "GET,POST,PUT,OPTIONS")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type,Authorization")
	c.Set(fiber.HeaderAccessControlMaxAge, "600")
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = statusFor(err)
	}
	s.logger.Info("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration", time.Since(start),
		"request_id", c.Locals("requestid"),
	)
	return err
}

func (s *Server) logPanic(c *fiber.Ctx, e any) {
	s.logger.Error("handler panicked", "path", c.Path(), "panic", e)
}

func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}
