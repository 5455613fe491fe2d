package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"quorum/internal/config"
	"quorum/internal/council"
)

var (
	runRounds  int
	runProfile string
)

var runCmd = &cobra.Command{
	Use:   "run [mission]",
	Short: "Run one interactive council in the terminal",
	Long: `Runs a full deliberation for the given mission. The proposer and
challenger argue in the background; whenever the council needs a ruling you
are prompted to decide. An unresolved council prints its escalation report
and asks for a remediation action.

Example:
  quorum run "migrate the billing service off the legacy queue"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCouncil,
}

func init() {
	runCmd.Flags().IntVar(&runRounds, "rounds", 0, "round budget (overrides config)")
	runCmd.Flags().StringVar(&runProfile, "profile", "", "opaque profile tag forwarded to the agents")
}

func runCouncil(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	mission := strings.Join(args, " ")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	maxRounds := cfg.Council.MaxRounds
	if runRounds > 0 {
		maxRounds = runRounds
	}
	id, err := rt.registry.Create(council.SessionConfig{
		Mission:   mission,
		Profile:   runProfile,
		MaxRounds: maxRounds,
	})
	if err != nil {
		return err
	}

	events, cancel := rt.bus.SubscribeSession(id)
	defer cancel()

	if err := rt.registry.Start(ctx, id); err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("council " + id))
	fmt.Println(labelStyle.Render("mission: ") + mission)
	fmt.Println()

	stdin := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			done, err := handleEvent(rt, stdin, id, ev)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func handleEvent(rt *runtime, stdin *bufio.Scanner, id string, ev council.Event) (done bool, err error) {
	switch ev.Type {
	case council.EventPhase:
		fmt.Println(phaseStyle.Render(fmt.Sprintf("round %d - %s", ev.Round, ev.Phase)))
	case council.EventProposal:
		printPayload("Proposal", ev.Data["proposal"])
	case council.EventObjection:
		printPayload("Objection", ev.Data["objection"])
	case council.EventMerged:
		printPayload("Merged draft", ev.Data["merged"])
	case council.EventValidation:
		printPayload("Revised proposal", ev.Data["refined"])
	case council.EventPreMortem:
		printPreMortem(ev.Data)
	case council.EventAwaitingDecision, council.EventAwaitingMergeDecision, council.EventAwaitingPreMortemChoice:
		value, note := promptDecision(stdin, ev.Data["options"])
		if err := rt.registry.SubmitDecision(id, value, note); err != nil {
			fmt.Println(warnStyle.Render("decision not accepted: " + err.Error()))
		}
	case council.EventComplete:
		if approved, _ := ev.Data["approved"].(bool); approved {
			fmt.Println(successStyle.Render("ADOPTED"))
			printPayload("Decision", ev.Data["proposal"])
		} else {
			fmt.Println(warnStyle.Render("CLOSED WITHOUT ADOPTION"))
		}
		return true, nil
	case council.EventEscalated:
		return true, resolveEscalationInteractive(rt, stdin, id, ev)
	case council.EventError:
		fmt.Println(errorStyle.Render("session failed: " + ev.Message))
		return true, nil
	}
	return false, nil
}

func printPayload(title string, raw any) {
	m, ok := raw.(map[string]any)
	if !ok {
		return
	}
	var b strings.Builder
	if t, ok := m["title"].(string); ok && t != "" {
		b.WriteString(titleStyle.Render(t) + "\n")
	}
	if s, ok := m["summary"].(string); ok && s != "" {
		b.WriteString(s + "\n")
	}
	if points, ok := m["key_points"].([]string); ok {
		for _, kp := range points {
			b.WriteString("  - " + kp + "\n")
		}
	}
	fmt.Println(boxStyle.Render(labelStyle.Render(title) + "\n" + strings.TrimRight(b.String(), "\n")))
}

func printPreMortem(data map[string]any) {
	fmt.Println(labelStyle.Render("Pre-mortem"))
	analyses, _ := data["analyses"].([]map[string]any)
	for _, a := range analyses {
		perspective, _ := a["perspective"].(string)
		summary, _ := a["summary"].(string)
		fmt.Printf("  [%s] %s\n", perspective, summary)
		if scenarios, ok := a["failure_scenarios"].([]string); ok {
			for _, sc := range scenarios {
				fmt.Println("    ! " + sc)
			}
		}
	}
}

// promptDecision renders the gate's menu and reads a choice from stdin.
// The numeric index or the literal value are both accepted; a note may
// follow after a colon (e.g. "4: too expensive").
func promptDecision(stdin *bufio.Scanner, raw any) (value, note string) {
	options, _ := raw.([]council.Option)
	fmt.Println(labelStyle.Render("Your ruling:"))
	for i, opt := range options {
		fmt.Printf("  %d) %s  %s\n", i+1, menuStyle.Render(opt.Value), opt.Label)
	}
	for {
		fmt.Print(promptStyle.Render("> "))
		if !stdin.Scan() {
			return "", ""
		}
		input := strings.TrimSpace(stdin.Text())
		if input == "" {
			continue
		}
		if v, n, ok := strings.Cut(input, ":"); ok {
			input, note = strings.TrimSpace(v), strings.TrimSpace(n)
		} else {
			input = strings.TrimSpace(input)
		}
		if idx, err := strconv.Atoi(input); err == nil && idx >= 1 && idx <= len(options) {
			return options[idx-1].Value, note
		}
		for _, opt := range options {
			if opt.Value == input {
				return opt.Value, note
			}
		}
		fmt.Println(warnStyle.Render("not an option, try again"))
	}
}

func resolveEscalationInteractive(rt *runtime, stdin *bufio.Scanner, id string, ev council.Event) error {
	fmt.Println(errorStyle.Render("ESCALATED"))
	if report, ok := ev.Data["report"].(string); ok {
		fmt.Println(report)
	}

	fmt.Println(labelStyle.Render("Remediation:"))
	actions := council.EscalationActions()
	for i, a := range actions {
		fmt.Printf("  %d) %s  %s\n", i+1, menuStyle.Render(a.Value), a.Label)
	}
	for {
		fmt.Print(promptStyle.Render("> "))
		if !stdin.Scan() {
			return nil
		}
		input := strings.TrimSpace(stdin.Text())
		action := ""
		if idx, err := strconv.Atoi(input); err == nil && idx >= 1 && idx <= len(actions) {
			action = actions[idx-1].Value
		} else {
			for _, a := range actions {
				if a.Value == input {
					action = a.Value
				}
			}
		}
		if action == "" {
			fmt.Println(warnStyle.Render("not an action, try again"))
			continue
		}

		var payload *council.Proposal
		if action == council.ActionManualMerge {
			fmt.Println("Title of the merged decision:")
			fmt.Print(promptStyle.Render("> "))
			if !stdin.Scan() {
				return nil
			}
			title := strings.TrimSpace(stdin.Text())
			fmt.Println("Summary:")
			fmt.Print(promptStyle.Render("> "))
			if !stdin.Scan() {
				return nil
			}
			payload = &council.Proposal{Title: title, Summary: strings.TrimSpace(stdin.Text())}
		}

		if err := rt.registry.ResolveEscalation(id, action, payload); err != nil {
			fmt.Println(warnStyle.Render("not accepted: " + err.Error()))
			continue
		}
		snap, err := rt.registry.Snapshot(id)
		if err != nil {
			return err
		}
		if rt.store != nil {
			_ = rt.store.SaveSnapshot(snap)
		}
		if snap.Adopted != nil {
			fmt.Println(successStyle.Render("ADOPTED (" + snap.AdoptedLabel + ")"))
			printPayload("Decision", snap.Adopted.Map())
		} else {
			fmt.Println(warnStyle.Render("closed: " + snap.EndReason))
		}
		return nil
	}
}
