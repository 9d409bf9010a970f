// Command agentcore is a terminal chat client exercising the core:
// AgentLoop driven over stdin/stdout against a single Thread, with tool
// approval prompts answered interactively. Grounded on the teacher's
// cmd/hector/main.go for its kong CLI layout and signal-driven shutdown.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/adnify/agentcore/internal/adapter"
	"github.com/adnify/agentcore/internal/agentloop"
	"github.com/adnify/agentcore/internal/approval"
	"github.com/adnify/agentcore/internal/compactor"
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/conversation"
	"github.com/adnify/agentcore/internal/dispatcher"
	"github.com/adnify/agentcore/internal/eventbus"
	"github.com/adnify/agentcore/internal/logging"
	"github.com/adnify/agentcore/internal/loopdetector"
	"github.com/adnify/agentcore/internal/mcp"
	"github.com/adnify/agentcore/internal/observability"
	"github.com/adnify/agentcore/internal/provider"
	"github.com/adnify/agentcore/internal/streamevent"
	"github.com/adnify/agentcore/internal/tokens"
	"github.com/adnify/agentcore/internal/toolmanager"
)

// CLI defines the command-line interface.
type CLI struct {
	Chat ChatCmd `cmd:"" default:"1" help:"Start an interactive chat session."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"warn"`
}

// ChatCmd starts an interactive REPL against a single Thread.
type ChatCmd struct {
	Workspace string `help:"Workspace root tools may read/write within." type:"path" default:"."`
	Mode      string `help:"chat, agent, or plan." default:"agent"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nshutting down...")
		cancel()
	}()

	cfg, err := c.loadConfig(cli)
	if err != nil {
		return err
	}

	logging.Init(logging.ParseLevel(cli.LogLevel), os.Stderr)

	accounter, err := tokens.New(cfg.LLM.Model)
	if err != nil {
		return fmt.Errorf("building token accounter: %w", err)
	}

	tp, err := observability.InitGlobalTracer(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	if sd, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
		defer sd.Shutdown(context.Background())
	}
	metrics := observability.NewMetrics(cfg.Metrics)

	prov := provider.Instrument(provider.ForProtocol(cfg.LLM.Provider, &cfg.LLM), metrics, string(cfg.LLM.Provider))

	reg := agentloop.BuildRegistry(agentloop.RegistryOptions{WorkspaceRoot: cfg.Workspace})
	mcpMgr := mcp.NewManager(cfg.MCPServers, reg)
	defer mcpMgr.Close()
	for _, err := range mcpMgr.ListAll(ctx) {
		fmt.Fprintf(os.Stderr, "warning: mcp server connect: %v\n", err)
	}
	if cli.Config != "" {
		if err := mcpMgr.Watch(cli.Config); err != nil {
			fmt.Fprintf(os.Stderr, "warning: mcp config watch: %v\n", err)
		}
	}
	tools := toolmanager.New(reg, mcpMgr)

	bus := eventbus.New()
	gate := approval.NewGate()
	loopDet := loopdetector.New()
	dispatch := dispatcher.New(cfg.Dispatcher, tools, gate, bus, loopDet)
	dispatch.SetMetrics(metrics)
	compact := compactor.New(cfg.Compactor, accounter, summarizerFor(prov))
	compact.SetMetrics(metrics)

	systemPrompt := "You are a careful, concise coding assistant operating inside a single workspace. Use the available tools to read before you write, and explain file changes briefly."

	loop := agentloop.New(cfg.AgentLoop, &cfg.LLM, prov, tools, dispatch, compact, loopDet, bus, accounter, systemPrompt)

	stdin := bufio.NewReader(os.Stdin)
	go promptApprovals(ctx, bus, gate, stdin)
	go printStream(ctx, bus)

	store := conversation.NewStore()
	thread := store.GetOrCreate("cli-session")

	mode := agentloop.ModeAgent
	switch c.Mode {
	case "chat":
		mode = agentloop.ModeChat
	case "plan":
		mode = agentloop.ModePlan
	}

	fmt.Println("agentcore chat — type a message, or /exit to quit")
	for {
		fmt.Print("\n> ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/exit" || line == "/quit" {
			break
		}

		agentloop.BeginUserTurn(thread, []conversation.ContentPart{{Text: line}})
		if err := loop.Send(ctx, thread, agentloop.ExecutionContext{WorkspacePath: cfg.Workspace, ChatMode: mode, ThreadID: thread.ID}); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil
}

// loadConfig reads --config if given, otherwise builds a minimal Config from
// environment-detected provider credentials and the chat command's flags.
func (c *ChatCmd) loadConfig(cli *CLI) (*config.Config, error) {
	if cli.Config != "" {
		cfg, err := config.Load(cli.Config)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		if cfg.Workspace == "" {
			cfg.Workspace = c.Workspace
		}
		return cfg, nil
	}

	cfg := &config.Config{Workspace: c.Workspace}
	cfg.SetDefaults()
	if err := cfg.LLM.Validate(); err != nil {
		return nil, fmt.Errorf("llm config: %w (set ANTHROPIC_API_KEY, OPENAI_API_KEY, or GEMINI_API_KEY, or pass --config)", err)
	}
	return cfg, nil
}

// summarizerFor adapts a Provider into the compactor.Summarizer shape: a
// single non-streaming completion over a plain-text prompt (§4.9's "LLM-based
// summarization" call, reusing the same provider the loop chats with rather
// than wiring a second one).
func summarizerFor(prov provider.Provider) compactor.Summarizer {
	return func(ctx context.Context, prompt string) (string, error) {
		req := provider.Request{
			Messages: []adapter.WireMessage{{Role: "user", Content: prompt}},
			Stream:   false,
		}
		events, err := prov.Chat(ctx, req)
		if err != nil {
			return "", err
		}
		var out strings.Builder
		for ev := range events {
			switch ev.Kind {
			case streamevent.KindText:
				out.WriteString(ev.Delta)
			case streamevent.KindError:
				return "", ev.Err
			}
		}
		return out.String(), nil
	}
}

// promptApprovals watches for tool-approval requests and resolves them from
// a y/n/a answer on stdin: "a" both approves and enables auto-approve for
// the rest of the thread (§4.7), so later calls to the same tool never
// prompt again. It shares stdin with the main REPL loop; that loop only
// reads again once Send has returned, so the two readers never race.
func promptApprovals(ctx context.Context, bus *eventbus.Bus, gate *approval.Gate, stdin *bufio.Reader) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Topic != eventbus.ToolPending {
				continue
			}
			tc, ok := ev.Payload.(*conversation.ToolCall)
			if !ok {
				continue
			}
			fmt.Printf("\n[approve %q %v? y/N/a(lways)] ", tc.Name, tc.Arguments)
			answer, _ := stdin.ReadString('\n')
			switch strings.ToLower(strings.TrimSpace(answer)) {
			case "y":
				gate.Approve(ev.ThreadID)
			case "a":
				gate.ApproveAndEnableAuto(ev.ThreadID)
			default:
				gate.Reject(ev.ThreadID)
			}
		}
	}
}

func printStream(ctx context.Context, bus *eventbus.Bus) {
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Topic == eventbus.StreamText {
				if se, ok := ev.Payload.(streamevent.Event); ok {
					fmt.Print(se.Delta)
				}
			}
		}
	}
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("agentcore"),
		kong.Description("A streaming, tool-using coding agent core."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
