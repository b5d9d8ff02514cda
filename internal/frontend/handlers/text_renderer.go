package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cory-johannsen/marksman/internal/frontend/telnet"
	"github.com/cory-johannsen/marksman/internal/game/command"
	"github.com/cory-johannsen/marksman/internal/game/marksman"
	"github.com/cory-johannsen/marksman/internal/game/preset"
)

// distributionRows is the most hit counts listed before rare outcomes are omitted.
const distributionRows = 21

// barWidth is the width of a 100% bar in the odds table.
const barWidth = 30

// RenderResult formats an AttackResult as colored Telnet text.
func RenderResult(r marksman.AttackResult) string {
	var b strings.Builder
	b.WriteString(telnet.Colorf(telnet.BrightYellow, "Result (%s)", r.Policy))
	b.WriteString("\r\n")
	row := func(label, value, color string) {
		b.WriteString(fmt.Sprintf("  %s %s\r\n", telnet.PadRight(label, 18), telnet.Colorize(color, value)))
	}
	row("Total attacks", strconv.Itoa(r.TotalAttacks), telnet.BrightWhite)
	row("Attack penalty", strconv.Itoa(r.AttackPenalty), penaltyColor(r.AttackPenalty))
	row("Final attack bonus", marksman.SignedBonus(r.FinalAttackBonus), telnet.BrightWhite)
	row("Needed d20 roll", strconv.Itoa(r.NeededRoll), telnet.White)
	row("Hit chance", fmt.Sprintf("%d%%", r.HitProbability), chanceColor(r.HitProbability))
	row("Expected damage", fmt.Sprintf("%.1f", r.ExpectedDamage), telnet.BrightGreen)
	return b.String()
}

func penaltyColor(p int) string {
	if p > 0 {
		return telnet.Red
	}
	return telnet.BrightWhite
}

func chanceColor(p int) string {
	switch {
	case p >= 65:
		return telnet.BrightGreen
	case p >= 35:
		return telnet.BrightYellow
	default:
		return telnet.BrightRed
	}
}

// RenderForm formats the raw field text of a session followed by its result.
func RenderForm(values marksman.Fields, r marksman.AttackResult) string {
	var b strings.Builder
	b.WriteString("\r\n")
	b.WriteString(telnet.Colorize(telnet.BrightCyan, "Inputs:"))
	b.WriteString("\r\n")
	for _, fsp := range marksman.FieldSpecs() {
		raw := values[fsp.Field]
		if raw == "" {
			raw = telnet.Colorize(telnet.Dim, "(empty)")
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\r\n",
			telnet.PadRight(fsp.Label, 18),
			telnet.PadRight(raw, 8),
			telnet.Colorf(telnet.Dim, "[%s]", fsp.Field)))
	}
	b.WriteString(RenderResult(r))
	return b.String()
}

// RenderFields lists every field with its aliases and the values it offers.
func RenderFields() string {
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.BrightCyan, "Fields:"))
	b.WriteString("\r\n")
	for _, fsp := range marksman.FieldSpecs() {
		b.WriteString(fmt.Sprintf("  %s%s%s %s %s\r\n",
			telnet.Green, telnet.PadRight(string(fsp.Field), 10), telnet.Reset,
			telnet.PadRight(fsp.Label, 18),
			telnet.Colorize(telnet.Dim, describeChoices(fsp))))
	}
	return b.String()
}

// describeChoices renders a contiguous choice list as a range.
func describeChoices(fsp marksman.FieldSpec) string {
	c := fsp.Choices
	if len(c) == 0 {
		return fmt.Sprintf(">= %d (default %s)", fsp.Min, fsp.Default)
	}
	contiguous := true
	for i := 1; i < len(c); i++ {
		if c[i] != c[i-1]+1 {
			contiguous = false
			break
		}
	}
	if contiguous {
		return fmt.Sprintf("%d..%d (default %s)", c[0], c[len(c)-1], fsp.Default)
	}
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.Itoa(v)
	}
	return fmt.Sprintf("%s (default %s)", strings.Join(parts, ", "), fsp.Default)
}

// RenderDistribution formats the chance of each hit count as a bar chart.
func RenderDistribution(r marksman.AttackResult, d marksman.Distribution) string {
	if len(d.Hits) == 0 {
		return telnet.Colorize(telnet.Dim, "Too many attacks to compute the odds.")
	}
	var b strings.Builder
	b.WriteString(telnet.Colorf(telnet.BrightYellow, "Hit odds for %d attacks at %d%%:", r.TotalAttacks, r.HitProbability))
	b.WriteString("\r\n")
	omitted := 0
	for k, p := range d.Hits {
		if len(d.Hits) > distributionRows && p < 0.0005 {
			omitted++
			continue
		}
		bar := strings.Repeat("#", int(p*barWidth+0.5))
		b.WriteString(fmt.Sprintf("  %3d hits %6.1f%% %s\r\n", k, p*100, telnet.Colorize(telnet.Green, bar)))
	}
	if omitted > 0 {
		b.WriteString(telnet.Colorf(telnet.Dim, "  (%d unlikely outcomes omitted)", omitted))
		b.WriteString("\r\n")
	}
	b.WriteString(telnet.Colorf(telnet.Cyan, "At least one hit: %.1f%%", d.AtLeastOne*100))
	b.WriteString("\r\n")
	return b.String()
}

// RenderTurn formats every die of a rolled turn.
func RenderTurn(t marksman.TurnRoll) string {
	var b strings.Builder
	b.WriteString(telnet.Colorf(telnet.BrightYellow, "Rolling %d attacks at %s vs %d:",
		t.Result.TotalAttacks, marksman.SignedBonus(t.Result.FinalAttackBonus), t.Result.Input.HitThreshold))
	b.WriteString("\r\n")
	for i, r := range t.Rolls {
		outcome := telnet.Colorize(telnet.Red, "miss")
		if r.Hit {
			outcome = telnet.Colorize(telnet.BrightGreen, "HIT")
		}
		b.WriteString(fmt.Sprintf("  #%-3d d20=%-2d total %-4d %s\r\n", i+1, r.Roll, r.Total, outcome))
	}
	b.WriteString(telnet.Colorf(telnet.BrightWhite, "%d of %d hit for %d damage.", t.Hits, len(t.Rolls), t.Damage))
	b.WriteString("\r\n")
	return b.String()
}

// RenderSimulation compares observed averages with the computed expectation.
func RenderSimulation(s marksman.SimulationResult) string {
	var b strings.Builder
	b.WriteString(telnet.Colorf(telnet.BrightYellow, "Simulated %d turns (%s):", s.Trials, s.Result.Policy))
	b.WriteString("\r\n")
	b.WriteString(fmt.Sprintf("  %s %.1f%% %s\r\n", telnet.PadRight("Hit rate", 16), s.HitRate,
		telnet.Colorf(telnet.Dim, "(computed %d%%)", s.Result.HitProbability)))
	b.WriteString(fmt.Sprintf("  %s %.2f\r\n", telnet.PadRight("Mean hits", 16), s.MeanHits))
	b.WriteString(fmt.Sprintf("  %s %.2f %s\r\n", telnet.PadRight("Mean damage", 16), s.MeanDamage,
		telnet.Colorf(telnet.Dim, "(computed %.1f)", s.Result.ExpectedDamage)))
	return b.String()
}

// RenderPolicies lists the hit policies and marks the selected one.
func RenderPolicies(names []string, current string) string {
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.BrightCyan, "Hit policies:"))
	b.WriteString("\r\n")
	for _, name := range names {
		if name == current {
			b.WriteString(fmt.Sprintf("  %s %s\r\n", telnet.Colorize(telnet.BrightGreen, name), telnet.Colorize(telnet.Dim, "(selected)")))
			continue
		}
		b.WriteString("  " + name + "\r\n")
	}
	return b.String()
}

// RenderPresets lists the available presets.
func RenderPresets(presets []*preset.Preset) string {
	if len(presets) == 0 {
		return telnet.Colorize(telnet.Dim, "No presets are loaded.")
	}
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.BrightCyan, "Presets:"))
	b.WriteString("\r\n")
	for _, p := range presets {
		b.WriteString(fmt.Sprintf("  %s%s%s %s", telnet.Green, telnet.PadRight(p.ID, 16), telnet.Reset, p.Name))
		if p.Description != "" {
			b.WriteString(telnet.Colorf(telnet.Dim, " - %s", p.Description))
		}
		b.WriteString("\r\n")
	}
	return b.String()
}

// RenderHelp lists the commands grouped by category.
func RenderHelp(registry *command.Registry) string {
	var b strings.Builder
	byCategory := registry.CommandsByCategory()
	for _, category := range registry.Categories() {
		b.WriteString(telnet.Colorf(telnet.BrightYellow, "%s commands:", strings.ToUpper(category[:1])+category[1:]))
		b.WriteString("\r\n")
		for _, cmd := range byCategory[category] {
			b.WriteString(fmt.Sprintf("  %s%s%s %s",
				telnet.Green, telnet.PadRight(cmd.Usage, 22), telnet.Reset, cmd.Help))
			if len(cmd.Aliases) > 0 {
				b.WriteString(telnet.Colorf(telnet.Dim, " (%s)", strings.Join(cmd.Aliases, ", ")))
			}
			b.WriteString("\r\n")
		}
	}
	return b.String()
}
