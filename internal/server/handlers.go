package server

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/prompt"
	"github.com/Iron-Ham/ideaforge/internal/reflection"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
	"github.com/Iron-Ham/ideaforge/internal/store"
	"github.com/Iron-Ham/ideaforge/internal/stream"
	"github.com/Iron-Ham/ideaforge/internal/turn"
)

func badRequest(err error) error {
	return errors.NewValidationError("malformed request body").WithCause(err)
}

// handleTurn runs a stateless turn: the client sends everything the turn
// needs.
func (s *Server) handleTurn(c *fiber.Ctx) error {
	var req turn.Request
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	if err := req.Normalize(s.opts.DefaultLevel); err != nil {
		return err
	}
	s.streamTurn(c, req, nil)
	return nil
}

// streamTurn switches the response to an SSE stream and runs req in the
// body writer. done, if set, receives the result once the turn finished.
func (s *Server) streamTurn(c *fiber.Ctx, req turn.Request, done func(*turn.TurnResult)) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := s.logger.WithSession(req.SessionID).WithTurn(req.TurnNumber)
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(s.ctx)
		defer cancel()

		result, err := s.runner.Run(ctx, req, stream.NewSSEEmitter(w))
		if err != nil {
			logger.Info("turn ended without a result", "error", err)
			return
		}
		if done != nil {
			done(result)
		}
	})
}

type createSessionBody struct {
	IdeaText        string   `json:"ideaText"`
	ValidationLevel string   `json:"validationLevel"`
	Personas        []string `json:"personas"`
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var body createSessionBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(err)
	}
	if strings.TrimSpace(body.IdeaText) == "" {
		return errors.NewValidationError("ideaText is required").WithField("ideaText")
	}
	names := body.Personas
	if len(names) == 0 {
		names = s.opts.DefaultPersonas
	}
	personas, err := persona.ParseAll(names)
	if err != nil {
		return err
	}
	level, err := s.level(body.ValidationLevel)
	if err != nil {
		return err
	}

	sess, err := s.sessions.CreateSession(c.UserContext(), store.NewSession{
		IdeaText:        body.IdeaText,
		ValidationLevel: level,
		Personas:        personas,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func (s *Server) level(requested string) (string, error) {
	req := turn.Request{ValidationLevel: requested, Personas: []persona.Persona{persona.Developer}}
	if err := req.Normalize(s.opts.DefaultLevel); err != nil {
		return "", err
	}
	return req.ValidationLevel, nil
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	list, err := s.sessions.ListSessions(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	if list == nil {
		list = []store.Session{}
	}
	return c.JSON(fiber.Map{"sessions": list})
}

func (s *Server) handleGetSession(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess, err := s.sessions.GetSession(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	latest, err := s.sessions.LatestTurn(ctx, sess.ID)
	if err != nil {
		return err
	}
	body := fiber.Map{
		"session":   sess,
		"scorecard": scorecard.Empty(),
		"turnCount": sess.TurnCount,
	}
	if latest != nil {
		body["scorecard"] = latest.Scorecard
		body["latestTurn"] = latest.Result
	}
	return c.JSON(body)
}

type sessionTurnBody struct {
	Message             string           `json:"message"`
	Personas            []string         `json:"personas"`
	ValidationLevel     string           `json:"validationLevel"`
	ConversationHistory []prompt.Message `json:"conversationHistory"`
}

// handleSessionTurn runs the next turn of a stored session. Everything the
// orchestrator needs besides the new message comes from the store, and the
// result is persisted only when the turn produced one.
func (s *Server) handleSessionTurn(c *fiber.Ctx) error {
	ctx := c.UserContext()
	sess, err := s.sessions.GetSession(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	var body sessionTurnBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(err)
	}

	req := turn.Request{
		SessionID:           sess.ID,
		IdeaText:            sess.IdeaText,
		Message:             body.Message,
		ConversationHistory: body.ConversationHistory,
		ValidationLevel:     sess.ValidationLevel,
		Personas:            sess.Personas,
		TurnNumber:          sess.TurnCount + 1,
		CompactSummary:      sess.CompactSummary,
	}
	if body.ValidationLevel != "" {
		req.ValidationLevel = body.ValidationLevel
	}
	if len(body.Personas) > 0 {
		req.Personas = make([]persona.Persona, len(body.Personas))
		for i, p := range body.Personas {
			req.Personas[i] = persona.Persona(p)
		}
	}

	latest, err := s.sessions.LatestTurn(ctx, sess.ID)
	if err != nil {
		return err
	}
	if latest != nil {
		prev := latest.Scorecard
		req.PreviousScorecard = &prev
		req.TurnNumber = latest.Turn + 1
	}
	if req.StagedReflections, err = s.sessions.ListReflections(ctx, sess.ID); err != nil {
		return err
	}
	evolution, err := s.sessions.ListEvolution(ctx, sess.ID)
	if err != nil {
		return err
	}
	req.ScoreEvolution = scorecard.WindowEvolution(evolution, req.TurnNumber, s.evolutionTurns())

	if err := req.Normalize(s.opts.DefaultLevel); err != nil {
		return err
	}

	s.streamTurn(c, req, func(res *turn.TurnResult) {
		s.persist(req, res)
	})
	return nil
}

func (s *Server) evolutionTurns() int {
	if s.opts.EvolutionTurns > 0 {
		return s.opts.EvolutionTurns
	}
	return reflection.DefaultEvolutionTurns
}

func (s *Server) persist(req turn.Request, res *turn.TurnResult) {
	logger := s.logger.WithSession(req.SessionID).WithTurn(res.Turn)
	encoded, err := json.Marshal(res)
	if err != nil {
		logger.Error("encode turn result", "error", err)
		return
	}
	// the client may already be gone; the result is still worth keeping
	if err := s.sessions.SaveTurn(context.WithoutCancel(s.ctx), store.TurnRecord{
		SessionID: req.SessionID,
		Turn:      res.Turn,
		TurnID:    res.TurnID,
		Scorecard: res.Scorecard,
		Result:    encoded,
		Evolution: res.ScoreEvolution,
	}); err != nil {
		logger.Error("persist turn", "error", err)
		return
	}
	logger.Debug("turn persisted", "turn_id", res.TurnID, "total", res.Scorecard.Total())
}

func (s *Server) handleAddReflection(c *fiber.Ctx) error {
	var r reflection.StagedReflection
	if err := c.BodyParser(&r); err != nil {
		return badRequest(err)
	}
	if _, err := persona.Parse(string(r.Persona)); err != nil {
		return err
	}
	if err := s.sessions.AddReflection(c.UserContext(), c.Params("id"), r); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusCreated)
}

type summaryBody struct {
	CompactSummary string `json:"compactSummary"`
}

func (s *Server) handleSetSummary(c *fiber.Ctx) error {
	var body summaryBody
	if err := c.BodyParser(&body); err != nil {
		return badRequest(err)
	}
	if err := s.sessions.SetCompactSummary(c.UserContext(), c.Params("id"), body.CompactSummary); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
