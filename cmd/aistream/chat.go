package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	ai "github.com/bitop-dev/aistream"
)

type chatOptions struct {
	model    string
	system   string
	maxSteps int
	output   string
	noTools  bool
	summary  bool
}

func newChatCmd(a *app) *cobra.Command {
	o := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Stream the answer to a single prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runChat(ctx, o, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.model, "model", "m", "", "model reference as provider:model (defaults to the configured model)")
	f.StringVar(&o.system, "system", "", "system prompt")
	f.IntVar(&o.maxSteps, "max-steps", 0, "maximum number of model calls (defaults to the configured value)")
	f.StringVarP(&o.output, "output", "o", "text", "output format (text, events, ui)")
	f.BoolVar(&o.noTools, "no-tools", false, "do not offer the built-in tools")
	f.BoolVar(&o.summary, "summary", true, "print a per-step summary when done")
	return cmd
}

func (a *app) runChat(ctx context.Context, o *chatOptions, prompt string, w io.Writer) error {
	s := a.settings()
	ref := firstNonEmpty(o.model, s.Model)
	model, err := a.resolve(ref)
	if err != nil {
		return err
	}

	maxSteps := o.maxSteps
	if maxSteps == 0 {
		maxSteps = s.MaxSteps
	}
	req := ai.StreamTextRequest{
		Model:    model,
		System:   firstNonEmpty(o.system, s.System),
		Prompt:   prompt,
		MaxSteps: maxSteps,
		Timeout:  s.Timeout,
		Logger:   a.logger(),
	}
	if !o.noTools {
		req.Tools = builtinTools()
	}

	res, err := ai.StreamText(ctx, req)
	if err != nil {
		return err
	}

	switch o.output {
	case "events":
		fs := res.FullStream()
		for fs.Next() {
			fmt.Fprintln(w, describeEvent(fs.Event()))
		}
	case "ui":
		if _, err := res.UIMessageStream(ai.UIMessageStreamOptions{}).WriteTo(w); err != nil {
			return err
		}
	default:
		ts := res.TextStream()
		for ts.Next() {
			fmt.Fprint(w, ts.Delta())
		}
		fmt.Fprintln(w)
	}

	agg, err := res.Result(context.Background())
	if o.summary && len(agg.Steps) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, stepTable(agg))
	}
	if ai.IsAborted(err) {
		fmt.Fprintln(w, "aborted")
		return nil
	}
	return err
}

func describeEvent(ev ai.StreamEvent) string {
	var detail string
	switch e := ev.(type) {
	case ai.TextEvent:
		detail = fmt.Sprintf("%q", e.Text)
	case ai.ReasoningEvent:
		detail = fmt.Sprintf("%q", e.Text)
	case ai.SourceEvent:
		detail = e.Source.URL
	case ai.FileEvent:
		detail = fmt.Sprintf("%s (%d bytes)", e.File.MediaType, len(e.File.Data))
	case ai.ToolCallStreamingStartEvent:
		detail = e.ToolName + " " + e.ToolCallID
	case ai.ToolCallDeltaEvent:
		detail = e.ArgsTextDelta
	case ai.ToolCallEvent:
		detail = fmt.Sprintf("%s(%s)", e.ToolName, e.Args)
	case ai.ToolResultEvent:
		detail = fmt.Sprintf("%s -> %v", e.ToolName, e.Result)
	case ai.StartStepEvent:
		detail = fmt.Sprintf("step %d", e.StepNumber)
	case ai.FinishStepEvent:
		detail = fmt.Sprintf("step %d %s", e.Step.StepNumber, e.Step.FinishReason)
	case ai.FinishEvent:
		detail = fmt.Sprintf("%s tokens=%d", e.FinishReason, e.TotalUsage.TotalTokens)
	case ai.ErrorEvent:
		detail = e.Err.Error()
	case ai.AbortEvent:
		if e.Err != nil {
			detail = e.Err.Error()
		}
	}
	return strings.TrimSpace(fmt.Sprintf("%-26s %s", ev.Type(), detail))
}

func stepTable(agg ai.Aggregate) string {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("STEP", "FINISH", "TOOL CALLS", "PROMPT", "COMPLETION", "TOTAL")
	for _, st := range agg.Steps {
		names := make([]string, 0, len(st.ToolCalls))
		for _, tc := range st.ToolCalls {
			names = append(names, tc.Name)
		}
		calls := strings.Join(names, ",")
		if calls == "" {
			calls = "-"
		}
		table.AddRow(st.StepNumber, st.FinishReason, calls, st.Usage.PromptTokens, st.Usage.CompletionTokens, st.Usage.TotalTokens)
	}
	table.AddRow("all", agg.FinishReason, len(agg.ToolCalls), agg.TotalUsage.PromptTokens, agg.TotalUsage.CompletionTokens, agg.TotalUsage.TotalTokens)
	return table.String()
}
