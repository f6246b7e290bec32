package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mark3labs/carepath/internal/auth"
	"github.com/mark3labs/carepath/internal/catalog"
	"github.com/mark3labs/carepath/internal/config"
	"github.com/mark3labs/carepath/internal/forms"
	"github.com/mark3labs/carepath/internal/logger"
	"github.com/mark3labs/carepath/internal/metrics"
	"github.com/mark3labs/carepath/internal/submission"
	"github.com/mark3labs/carepath/internal/tui/formwizard"
	"github.com/mark3labs/carepath/internal/wizard"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var flowFlags struct {
	fields   []string
	provider string
	headless bool
	noAck    bool
}

var claimCmd = newFlowCmd("claim", "Submit a claim", `Submit a claim in three steps: provider and service date, charges, and
review with attestation.

Fields can be pre-filled with --field key=value. Multi-select values are
comma-separated. With --headless, or when stdout is not a terminal, the
form is submitted directly from the pre-filled values and any unmet fields
are reported.`)

var roiCmd = newFlowCmd("roi", "Create a HIPAA release-of-information authorization", `Create a HIPAA release-of-information authorization in three steps:
recipient, records requested, and authorization.

Fields can be pre-filled with --field key=value. With --headless, or when
stdout is not a terminal, the form is submitted directly.`)

func newFlowCmd(name, short, long string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlow(cmd, name)
		},
	}
	cmd.Flags().StringArrayVarP(&flowFlags.fields, "field", "f", nil, "Pre-fill a field as key=value (repeatable)")
	cmd.Flags().BoolVar(&flowFlags.headless, "headless", false, "Submit without the TUI")
	cmd.Flags().BoolVar(&flowFlags.noAck, "no-ack", false, "Do not acknowledge the receipt on the submission desk")
	if name == "claim" {
		cmd.Flags().StringVar(&flowFlags.provider, "provider", "", "Pre-fill the provider from the catalog by id (see 'carepath providers')")
	}
	return cmd
}

// fieldValue is one parsed --field flag.
type fieldValue struct {
	key   string
	value string
}

// parseFields splits key=value flags. Only the first '=' separates.
func parseFields(raw []string) ([]fieldValue, error) {
	out := make([]fieldValue, 0, len(raw))
	for _, r := range raw {
		key, value, ok := strings.Cut(r, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --field %q: want key=value", r)
		}
		out = append(out, fieldValue{key: key, value: value})
	}
	return out, nil
}

// prefill writes parsed values into the engine. Keys the flow does not
// declare are rejected.
func prefill(e *wizard.Engine, values []fieldValue) error {
	for _, fv := range values {
		if _, _, ok := e.Field(fv.key); !ok {
			return fmt.Errorf("unknown field %q for flow %s", fv.key, e.Flow())
		}
		forms.SetRaw(e, fv.key, fv.value)
	}
	return nil
}

// providerValue resolves a catalog provider id to the providerName field.
func providerValue(id string) (fieldValue, error) {
	p, ok := catalog.ProviderByID(id)
	if !ok {
		return fieldValue{}, fmt.Errorf("unknown provider %q (known: %s)", id, strings.Join(catalog.ProviderNames(), ", "))
	}
	return fieldValue{key: "providerName", value: p.Name}, nil
}

func runFlow(cmd *cobra.Command, name string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	flow, err := reg.Get(name)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	recorder := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := recorder.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Warn("Metrics server stopped: %v", err)
			}
		}()
	}

	engine, err := flow.NewEngine(wizard.WithObserver(recorder.Observe))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	values, err := parseFields(flowFlags.fields)
	if err != nil {
		return err
	}
	if flowFlags.provider != "" {
		pv, err := providerValue(flowFlags.provider)
		if err != nil {
			return err
		}
		values = append([]fieldValue{pv}, values...)
	}
	if err := prefill(engine, values); err != nil {
		return err
	}

	var ack formwizard.Acknowledger
	if cfg.Acknowledge && !flowFlags.noAck {
		desk, closeDesk, err := submission.Open(ctx)
		if err != nil {
			return fmt.Errorf("failed to open submission desk: %w", err)
		}
		defer func() {
			if err := closeDesk(); err != nil {
				logger.Warn("Closing submission desk: %v", err)
			}
		}()
		ack = desk
	}

	session := &auth.Session{}
	if _, err := session.SignIn(cfg.UserEmail, ""); err != nil {
		logger.Warn("Sign-in skipped: %v", err)
	}
	submitter := session.Submitter(config.DefaultUserEmail)

	out := cmd.OutOrStdout()
	if flowFlags.headless || cfg.Headless || !isTerminal() {
		receipt, err := submitHeadless(engine)
		if err != nil {
			printUnmet(out, flow, err)
			return err
		}
		res := formwizard.Result{Receipt: receipt}
		if ack != nil {
			a, err := ack.Acknowledge(ctx, receipt, submitter)
			recorder.Acknowledged(flow.Name, err)
			if err != nil {
				res.AckErr = err
			} else {
				res.Ack = &a
			}
		}
		printReceipt(out, flow, res)
		return nil
	}

	res, err := formwizard.Run(flow, engine, formwizard.Options{
		Context:      ctx,
		Acknowledger: ack,
		Submitter:    submitter,
		OnAck:        recorder.Acknowledged,
	})
	if err != nil {
		return err
	}
	if res.Cancelled || res.Receipt.Reference == "" {
		fmt.Fprintln(out, "Cancelled. Nothing was submitted.")
		return nil
	}
	printReceipt(out, flow, res)
	return nil
}

// isTerminal reports whether stdout is an interactive terminal.
func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// submitHeadless walks every step forward and submits. The first refused
// transition is returned as is.
func submitHeadless(e *wizard.Engine) (wizard.Receipt, error) {
	for !e.IsTerminal() {
		if err := e.GoNext(); err != nil {
			return wizard.Receipt{}, err
		}
	}
	return e.Submit()
}

// printUnmet describes the fields that stopped a headless submission.
func printUnmet(w io.Writer, flow *forms.Flow, err error) {
	ise, ok := wizard.IsInvalidStep(err)
	if !ok {
		return
	}
	step := flow.Steps()[ise.Step-1]
	fmt.Fprintf(w, "Step %d (%s) is incomplete:\n", ise.Step, step.Title)
	for _, key := range ise.Fields() {
		label := key
		if f, ok := step.Field(key); ok {
			label = f.Label
		}
		msg := ise.Messages[key]
		if msg == "" {
			msg = "required"
		}
		fmt.Fprintf(w, "  - %s (%s): %s\n", label, key, msg)
	}
}

// printReceipt writes the receipt summary and acknowledgement status.
func printReceipt(w io.Writer, flow *forms.Flow, res formwizard.Result) {
	fmt.Fprintf(w, "✓ %s submitted\n\n", flow.Title)
	fmt.Fprintln(w, flow.ReceiptSummary(res.Receipt))
	switch {
	case res.AckErr != nil:
		fmt.Fprintf(w, "Acknowledgement failed: %v\n", res.AckErr)
	case res.Ack != nil:
		fmt.Fprintf(w, "Acknowledged as sequence %d at %s\n", res.Ack.Sequence, res.Ack.At.Format("2006-01-02 15:04:05"))
	}
}
