package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	ai "github.com/bitop-dev/aistream"
)

const maxChatRequestBytes = 1 << 20

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /api/chat as a UI message stream",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, firstNonEmpty(addr, a.settings().Server.Addr))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to the configured address)")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger().Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", a.handleChat)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

type chatRequest struct {
	Messages  []chatMessage `json:"messages"`
	System    string        `json:"system,omitempty"`
	Model     string        `json:"model,omitempty"`
	MessageID string        `json:"messageId,omitempty"`
	MaxSteps  int           `json:"maxSteps,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (a *app) handleChat(w http.ResponseWriter, r *http.Request) {
	s := a.settings()
	log := a.logger()

	var body chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatRequestBytes)).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	model, err := a.resolve(firstNonEmpty(body.Model, s.Model))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs := make([]ai.Message, 0, len(body.Messages))
	for _, m := range body.Messages {
		msgs = append(msgs, ai.Message{Role: ai.Role(m.Role), Content: []ai.ContentPart{ai.TextPart{Text: m.Content}}})
	}

	maxSteps := body.MaxSteps
	if maxSteps <= 0 || maxSteps > s.MaxSteps {
		maxSteps = s.MaxSteps
	}
	res, err := ai.StreamText(r.Context(), ai.StreamTextRequest{
		Model:    model,
		System:   firstNonEmpty(body.System, s.System),
		Messages: msgs,
		Tools:    builtinTools(),
		MaxSteps: maxSteps,
		Timeout:  s.Timeout,
		Logger:   log,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = res.PipeUIMessageStreamToResponse(w, nil, ai.UIMessageStreamOptions{
		MessageID:     body.MessageID,
		OmitReasoning: !s.Server.SendReasoning,
		OmitSources:   !s.Server.SendSources,
		OnError:       clientErrorText,
	})
	if err != nil {
		log.Warn("writing ui message stream", "run_id", res.RunID(), "error", err)
	}
}

func clientErrorText(err error) string {
	switch {
	case ai.IsRateLimited(err):
		return "The model is rate limited. Try again later."
	case ai.IsAuth(err):
		return "The server is not authorized to call the model."
	case ai.IsTimeout(err):
		return "The model did not answer in time."
	default:
		return "An error occurred."
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
