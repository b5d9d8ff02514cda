// Package handlers provides the Telnet calculator session: the command loop, the
// dispatch of each command and the text rendering of results.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/marksman/internal/frontend/telnet"
	"github.com/cory-johannsen/marksman/internal/game/command"
	"github.com/cory-johannsen/marksman/internal/game/marksman"
	"github.com/cory-johannsen/marksman/internal/game/session"
	"github.com/cory-johannsen/marksman/internal/observability"
)

const welcomeBanner = "\r\n" + telnet.Bold + telnet.BrightCyan +
	"  MARKSMAN ammo calculator" + telnet.Reset + "\r\n\r\n" +
	"  Each ammo spent buys one extra attack at -2 to every attack.\r\n" +
	"  Precise shots buy the penalty back one point at a time.\r\n\r\n" +
	"  Type " + telnet.Green + "help" + telnet.Reset + " for commands, " +
	telnet.Green + "quit" + telnet.Reset + " to disconnect.\r\n"

var prompt = telnet.Colorize(telnet.BrightWhite, "marksman> ")

// CalculatorHandler implements telnet.SessionHandler. Every connection gets its own
// session and form.
type CalculatorHandler struct {
	sessions *session.Manager
	commands *command.Registry
	logger   *zap.Logger
}

// NewCalculatorHandler creates a handler serving sessions from sessions.
//
// Precondition: sessions, commands and logger must be non-nil.
func NewCalculatorHandler(sessions *session.Manager, commands *command.Registry, logger *zap.Logger) *CalculatorHandler {
	return &CalculatorHandler{sessions: sessions, commands: commands, logger: logger}
}

// HandleSession implements telnet.SessionHandler. It shows the banner and the
// default result, then processes commands until the client quits or disconnects.
//
// Postcondition: Returns nil on clean quit, ctx.Err() on shutdown, or a wrapped I/O error.
func (h *CalculatorHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	start := time.Now()
	remote := conn.RemoteAddr().String()
	sess := h.sessions.Open("telnet", remote)
	defer h.sessions.Close(sess.ID)

	logger := observability.SessionLogger(h.logger, "telnet", sess.ID, remote)
	logger.Info("session opened")

	if err := conn.WriteLines(welcomeBanner, RenderResult(sess.Result())); err != nil {
		return fmt.Errorf("sending welcome: %w", err)
	}

	err := h.commandLoop(ctx, conn, sess, logger)
	logger.Info("session closed",
		zap.Duration("session_duration", time.Since(start)),
		zap.NamedError("reason", err),
	)
	return err
}

// commandLoop reads, resolves and dispatches commands.
func (h *CalculatorHandler) commandLoop(ctx context.Context, conn *telnet.Conn, sess *session.Session, logger *zap.Logger) error {
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Server shutting down. Goodbye!"))
			return ctx.Err()
		default:
		}

		if err := conn.WritePrompt(prompt); err != nil {
			return fmt.Errorf("writing prompt: %w", err)
		}

		line, err := conn.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading input: %w", err)
		}

		parsed := command.Parse(line)
		if parsed.Command == "" {
			continue
		}

		cmd, ok := h.commands.Resolve(parsed.Command)
		if !ok {
			_ = conn.WriteLine(telnet.Colorf(telnet.Red, "Unknown command: %s. Type 'help' for available commands.", parsed.Command))
			continue
		}
		fn, ok := calcHandlerMap[cmd.Handler]
		if !ok {
			logger.Error("command has no handler", zap.String("command", cmd.Name), zap.String("handler", cmd.Handler))
			_ = conn.WriteLine(telnet.Colorf(telnet.Red, "%s is not available.", cmd.Name))
			continue
		}

		res, err := fn(ctx, &calcContext{
			cmd:      cmd,
			parsed:   parsed,
			conn:     conn,
			sess:     sess,
			sessions: h.sessions,
			commands: h.commands,
			logger:   logger,
		})
		if err != nil {
			return err
		}
		if res.quit {
			return nil
		}
	}
}

// calcContext carries everything a command function needs.
type calcContext struct {
	cmd      *command.Command
	parsed   command.ParseResult
	conn     *telnet.Conn
	sess     *session.Session
	sessions *session.Manager
	commands *command.Registry
	logger   *zap.Logger
}

// calcResult tells the command loop whether to end the session.
type calcResult struct {
	quit bool
}

// calcHandlerFunc runs one command. A non-nil error ends the session.
type calcHandlerFunc func(ctx context.Context, c *calcContext) (calcResult, error)

// CalculatorHandlers returns the set of Handler constants with a dispatch function.
func CalculatorHandlers() map[string]bool {
	out := make(map[string]bool, len(calcHandlerMap))
	for name := range calcHandlerMap {
		out[name] = true
	}
	return out
}

// calcHandlerMap is the single source of truth for command dispatch.
// To add a command: add a Handler constant to commands.go AND an entry here.
var calcHandlerMap = map[string]calcHandlerFunc{
	command.HandlerShow:     calcShow,
	command.HandlerFields:   calcFields,
	command.HandlerSet:      calcSet,
	command.HandlerPolicy:   calcPolicy,
	command.HandlerPreset:   calcPreset,
	command.HandlerReset:    calcReset,
	command.HandlerOdds:     calcOdds,
	command.HandlerRoll:     calcRoll,
	command.HandlerSimulate: calcSimulate,
	command.HandlerHelp:     calcHelp,
	command.HandlerQuit:     calcQuit,
}

// reply writes text and treats a write failure as the end of the session.
func reply(c *calcContext, text string) (calcResult, error) {
	if err := c.conn.WriteLine(text); err != nil {
		return calcResult{}, fmt.Errorf("writing output: %w", err)
	}
	return calcResult{}, nil
}

func usage(c *calcContext) (calcResult, error) {
	return reply(c, telnet.Colorf(telnet.Red, "Usage: %s", c.cmd.Usage))
}

func calcShow(_ context.Context, c *calcContext) (calcResult, error) {
	_, _, values := c.sess.Snapshot()
	return reply(c, RenderForm(values, c.sess.Result()))
}

func calcFields(_ context.Context, c *calcContext) (calcResult, error) {
	return reply(c, RenderFields())
}

func calcSet(_ context.Context, c *calcContext) (calcResult, error) {
	if len(c.parsed.Args) < 2 {
		return usage(c)
	}
	name := c.parsed.Args[0]
	value := strings.Join(c.parsed.Args[1:], " ")
	r, err := c.sess.Set(name, value)
	if errors.Is(err, marksman.ErrUnknownField) {
		return reply(c, telnet.Colorf(telnet.Red, "Unknown field %q. Type 'fields' to list them.", name))
	}
	if err != nil {
		return calcResult{}, err
	}
	c.logger.Debug("field set", zap.String("field", name), zap.String("value", value))
	return reply(c, RenderResult(r))
}

func calcPolicy(_ context.Context, c *calcContext) (calcResult, error) {
	_, current, _ := c.sess.Snapshot()
	if len(c.parsed.Args) == 0 {
		return reply(c, RenderPolicies(c.sessions.PolicyNames(), current.Name()))
	}
	p, err := c.sessions.Policy(strings.ToLower(c.parsed.Args[0]))
	if errors.Is(err, marksman.ErrUnknownPolicy) {
		return reply(c, telnet.Colorf(telnet.Red, "Unknown policy %q. Type 'policy' to list them.", c.parsed.Args[0]))
	}
	if err != nil {
		return calcResult{}, err
	}
	c.logger.Info("policy selected", zap.String("policy", p.Name()))
	return reply(c, RenderResult(c.sess.SetPolicy(p)))
}

func calcPreset(_ context.Context, c *calcContext) (calcResult, error) {
	if len(c.parsed.Args) == 0 {
		return reply(c, RenderPresets(c.sessions.Presets()))
	}
	p, err := c.sessions.Preset(c.parsed.Args[0])
	if err != nil {
		return reply(c, telnet.Colorf(telnet.Red, "Unknown preset %q. Type 'preset' to list them.", c.parsed.Args[0]))
	}
	r := c.sess.Apply(p.Input())
	return reply(c, telnet.Colorf(telnet.Cyan, "Loaded %s.", p.Name)+"\r\n"+RenderResult(r))
}

func calcReset(_ context.Context, c *calcContext) (calcResult, error) {
	return reply(c, RenderResult(c.sess.Reset()))
}

func calcOdds(_ context.Context, c *calcContext) (calcResult, error) {
	r := c.sess.Result()
	return reply(c, RenderDistribution(r, marksman.HitDistribution(r)))
}

func calcRoll(_ context.Context, c *calcContext) (calcResult, error) {
	in, policy, _ := c.sess.Snapshot()
	turn, err := c.sessions.Roll(in, policy)
	switch {
	case errors.Is(err, marksman.ErrPolicyCannotRoll):
		return reply(c, telnet.Colorf(telnet.Red, "The %s policy cannot roll individual attacks.", policy.Name()))
	case errors.Is(err, marksman.ErrTooManyAttacks):
		return reply(c, telnet.Colorf(telnet.Red, "Too many attacks to roll (limit %d).", marksman.MaxRolledAttacks))
	case err != nil:
		return calcResult{}, err
	}
	return reply(c, RenderTurn(turn))
}

func calcSimulate(ctx context.Context, c *calcContext) (calcResult, error) {
	trials := 0
	if len(c.parsed.Args) > 0 {
		n, err := strconv.Atoi(c.parsed.Args[0])
		if err != nil || n < 1 {
			return usage(c)
		}
		trials = n
	}
	in, policy, _ := c.sess.Snapshot()
	sim, err := c.sessions.Simulate(ctx, in, policy, trials)
	switch {
	case errors.Is(err, session.ErrTooManyTrials):
		return reply(c, telnet.Colorf(telnet.Red, "Too many trials: %v", err))
	case errors.Is(err, marksman.ErrPolicyCannotRoll):
		return reply(c, telnet.Colorf(telnet.Red, "The %s policy cannot roll individual attacks.", policy.Name()))
	case errors.Is(err, marksman.ErrTooManyAttacks):
		return reply(c, telnet.Colorf(telnet.Red, "Too many attacks to roll (limit %d).", marksman.MaxRolledAttacks))
	case err != nil:
		return calcResult{}, err
	}
	return reply(c, RenderSimulation(sim))
}

func calcHelp(_ context.Context, c *calcContext) (calcResult, error) {
	return reply(c, RenderHelp(c.commands))
}

func calcQuit(_ context.Context, c *calcContext) (calcResult, error) {
	_ = c.conn.WriteLine(telnet.Colorize(telnet.Cyan, "Goodbye!"))
	return calcResult{quit: true}, nil
}
