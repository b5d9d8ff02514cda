package main

import (
	"fmt"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/marksman/internal/config"
	"github.com/cory-johannsen/marksman/internal/frontend/handlers"
	"github.com/cory-johannsen/marksman/internal/frontend/telnet"
	"github.com/cory-johannsen/marksman/internal/frontend/web"
	"github.com/cory-johannsen/marksman/internal/game/command"
	"github.com/cory-johannsen/marksman/internal/game/dice"
	"github.com/cory-johannsen/marksman/internal/game/marksman"
	"github.com/cory-johannsen/marksman/internal/game/preset"
	"github.com/cory-johannsen/marksman/internal/game/session"
	"github.com/cory-johannsen/marksman/internal/scripting"
	"github.com/cory-johannsen/marksman/internal/server"
)

// App is the assembled server: every enabled listener under one lifecycle.
type App struct {
	Lifecycle *server.Lifecycle
	Sessions  *session.Manager
}

// ProviderSet builds an App from a validated Config and a logger.
var ProviderSet = wire.NewSet(
	wire.FieldsOf(new(config.Config), "Telnet", "HTTP", "Calculator"),
	dice.NewCryptoSource,
	dice.NewLoggedRoller,
	command.DefaultRegistry,
	provideScripts,
	providePolicies,
	providePresets,
	provideSessions,
	provideAcceptor,
	web.NewServer,
	provideApp,
)

// provideScripts loads the scripted policies of calc.ScriptsDir. The cleanup closes
// their Lua states.
func provideScripts(calc config.CalculatorConfig, roller *dice.Roller, logger *zap.Logger) (*scripting.Manager, func(), error) {
	m := scripting.NewManager(roller, logger, calc.ScriptInstructionLimit)
	if calc.ScriptsDir != "" {
		if _, err := m.LoadDir(calc.ScriptsDir); err != nil {
			m.Close()
			return nil, nil, fmt.Errorf("loading scripted policies: %w", err)
		}
	}
	return m, m.Close, nil
}

func providePolicies(calc config.CalculatorConfig, scripts *scripting.Manager) (*marksman.PolicyRegistry, error) {
	return marksman.NewPolicyRegistry(calc.Policy, scripts.Policies()...)
}

func providePresets(calc config.CalculatorConfig, logger *zap.Logger) (*preset.Registry, error) {
	if calc.PresetsDir == "" {
		return preset.NewRegistry(nil)
	}
	presets, err := preset.LoadPresets(calc.PresetsDir)
	if err != nil {
		return nil, fmt.Errorf("loading presets: %w", err)
	}
	logger.Info("presets loaded", zap.String("dir", calc.PresetsDir), zap.Int("count", len(presets)))
	return preset.NewRegistry(presets)
}

func provideSessions(calc config.CalculatorConfig, policies *marksman.PolicyRegistry, presets *preset.Registry, src dice.Source, logger *zap.Logger) *session.Manager {
	return session.NewManager(session.Options{
		Policies:            policies,
		Presets:             presets,
		Source:              src,
		SimulationTrials:    calc.SimulationTrials,
		MaxSimulationTrials: calc.MaxSimulationTrials,
	}, logger)
}

func provideAcceptor(cfg config.TelnetConfig, sessions *session.Manager, commands *command.Registry, logger *zap.Logger) *telnet.Acceptor {
	return telnet.NewAcceptor(cfg, handlers.NewCalculatorHandler(sessions, commands, logger), logger)
}

// provideApp registers the enabled listeners; Telnet starts first and stops last.
func provideApp(tcfg config.TelnetConfig, hcfg config.HTTPConfig, acceptor *telnet.Acceptor, api *web.Server, sessions *session.Manager, logger *zap.Logger) *App {
	lc := server.NewLifecycle(logger)
	if tcfg.Enabled {
		lc.Add("telnet", acceptor)
	}
	if hcfg.Enabled {
		lc.Add("http", server.NewHTTPService(api.HTTPServer(hcfg), hcfg.ShutdownTimeout))
	}
	return &App{Lifecycle: lc, Sessions: sessions}
}
