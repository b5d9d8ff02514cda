// Package main resolves one Marksman attack from flags and prints the result.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/marksman/internal/config"
	"github.com/cory-johannsen/marksman/internal/frontend/handlers"
	"github.com/cory-johannsen/marksman/internal/frontend/telnet"
	"github.com/cory-johannsen/marksman/internal/game/dice"
	"github.com/cory-johannsen/marksman/internal/game/marksman"
	"github.com/cory-johannsen/marksman/internal/game/preset"
	"github.com/cory-johannsen/marksman/internal/observability"
	"github.com/cory-johannsen/marksman/internal/scripting"
)

func main() {
	logger, err := observability.NewLogger(config.LoggingConfig{Level: "warn", Format: "console"})
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	if err := run(os.Args[1:], os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args, resolves the attack and writes the rendered result to out.
func run(args []string, out io.Writer, logger *zap.Logger) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(out)

	fields := make(map[marksman.Field]*string, 6)
	for _, fsp := range marksman.FieldSpecs() {
		fields[fsp.Field] = fs.String(string(fsp.Field), fsp.Default, fsp.Label)
	}
	policyName := fs.String("policy", marksman.PolicySimple, "hit policy")
	scriptsDir := fs.String("scripts", "", "directory of *.lua hit policies")
	presetPath := fs.String("preset", "", "YAML preset file; explicitly set field flags override it")
	odds := fs.Bool("odds", false, "also print the chance of each number of hits")
	roll := fs.Bool("roll", false, "also roll the turn")
	color := fs.Bool("color", false, "keep ANSI colors")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)
	scripts := scripting.NewManager(roller, logger, scripting.DefaultInstructionLimit)
	defer scripts.Close()
	if *scriptsDir != "" {
		if _, err := scripts.LoadDir(*scriptsDir); err != nil {
			return err
		}
	}
	policies, err := marksman.NewPolicyRegistry(marksman.PolicySimple, scripts.Policies()...)
	if err != nil {
		return err
	}
	policy, err := policies.Lookup(strings.ToLower(*policyName))
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(policies.Names(), ", "))
	}

	values := make(marksman.Fields, len(fields))
	if *presetPath != "" {
		p, err := preset.LoadFile(*presetPath)
		if err != nil {
			return err
		}
		values = marksman.FieldsOf(p.Input())
	}
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	for field, v := range fields {
		if *presetPath == "" || explicit[string(field)] {
			values[field] = *v
		}
	}

	form := marksman.NewForm(policy)
	for field, v := range values {
		form.SetField(field, v)
	}
	r := form.Result()

	var b strings.Builder
	b.WriteString(handlers.RenderResult(r))
	if *odds {
		b.WriteString(handlers.RenderDistribution(r, marksman.HitDistribution(r)))
	}
	if *roll {
		turn, err := marksman.RollTurn(form.Input(), policy, roller)
		if err != nil {
			return err
		}
		b.WriteString(handlers.RenderTurn(turn))
	}

	text := strings.ReplaceAll(b.String(), "\r\n", "\n")
	if !*color {
		text = telnet.StripANSI(text)
	}
	_, err = io.WriteString(out, text)
	return err
}
