// Command feo-agent runs one agent process of a cyclic task-chain
// deployment: the primary drives the global schedule, every other agent
// is a secondary that steps its own activities in obedience to it. The
// concrete activities wired in here are the examples/adas fixtures; a
// different deployment would swap in its own registry.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nomis52/feo/activity"
	"github.com/nomis52/feo/agent"
	"github.com/nomis52/feo/buildinfo"
	"github.com/nomis52/feo/depgraph"
	"github.com/nomis52/feo/eventbus"
	"github.com/nomis52/feo/examples/adas"
	"github.com/nomis52/feo/global"
	"github.com/nomis52/feo/ids"
	"github.com/nomis52/feo/logging"
	"github.com/nomis52/feo/metrics"
	"github.com/nomis52/feo/program"
	"github.com/nomis52/feo/recorder"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Exit codes per the agent binary's external contract: 0 is a clean
// shutdown, any other value is reserved for configuration errors, a
// missing/unknown agent id, or an unreachable primary.
const (
	exitOK         = 0
	exitConfigErr  = 1
	exitUnknownID  = 2
	exitRunFailure = 3
)

type args struct {
	configPath    string
	app           string
	listenAddr    string
	redisAddr     string
	logLevel      string
	logFormat     string
	logConfigPath string
	agentID       int
	cycleTimeMs   int
	haveCycle     bool
	version       bool
}

func main() {
	a, err := parseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		flag.Usage()
		os.Exit(exitUnknownID)
	}

	if a.version {
		info := buildinfo.Get()
		fmt.Printf("feo-agent %s (%s)\n", info.GitCommit, info.BuildTime)
		os.Exit(exitOK)
	}

	code := run(a)
	os.Exit(code)
}

func parseArgs() (args, error) {
	var a args
	flag.BoolVar(&a.version, "version", false, "print build info and exit")
	flag.StringVar(&a.configPath, "config", "", "path to the dependency specification JSON file (required)")
	flag.StringVar(&a.app, "app", "feo", "deployment-wide app name, namespaces every wire event")
	flag.StringVar(&a.listenAddr, "listen-addr", ":9100", "diagnostics HTTP server address (/healthz, /metrics, /status)")
	flag.StringVar(&a.redisAddr, "redis-addr", "", "Redis address for cross-process transport; empty uses an in-process transport")
	flag.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.StringVar(&a.logFormat, "log-format", "json", "log format: json, text")
	flag.StringVar(&a.logConfigPath, "log-config", "", "optional YAML log config (level, format, output, add_source) used instead of -log-level/-log-format")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <agent_id> [cycle_time_ms]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nfeo-agent runs one agent process of a cyclic task-chain deployment.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if a.version {
		return a, nil
	}

	rest := flag.Args()
	if a.configPath == "" {
		return a, fmt.Errorf("-config is required")
	}
	if len(rest) < 1 {
		return a, fmt.Errorf("missing required <agent_id> argument")
	}
	if _, err := fmt.Sscanf(rest[0], "%d", &a.agentID); err != nil {
		return a, fmt.Errorf("invalid agent_id %q: %w", rest[0], err)
	}
	if len(rest) >= 2 {
		if _, err := fmt.Sscanf(rest[1], "%d", &a.cycleTimeMs); err != nil {
			return a, fmt.Errorf("invalid cycle_time_ms %q: %w", rest[1], err)
		}
		a.haveCycle = true
	}
	return a, nil
}

func run(a args) int {
	logCfg := logging.Config{Level: a.logLevel, Format: a.logFormat}
	if a.logConfigPath != "" {
		fileCfg, err := logging.LoadConfig(a.logConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return exitConfigErr
		}
		logCfg = fileCfg
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitConfigErr
	}
	info := buildinfo.Get()
	logger.Info("starting feo-agent", "git_commit", info.GitCommit, "build_time", info.BuildTime)

	cfg, err := depgraph.Load(a.configPath)
	if err != nil {
		logger.Error("loading dependency specification", "error", err)
		return exitConfigErr
	}

	agentID := ids.AgentID(a.agentID)
	assignment, ok := cfg.AgentAssignments[agentID]
	if !ok {
		logger.Error("unknown agent id", "agent_id", agentID)
		return exitUnknownID
	}

	period := time.Duration(cfg.CycleTimeMs) * time.Millisecond
	if a.haveCycle && agentID == cfg.PrimaryAgent {
		period = time.Duration(a.cycleTimeMs) * time.Millisecond
	}

	bus, closeTransport, err := buildBus(a)
	if err != nil {
		logger.Error("building event bus transport", "error", err)
		return exitConfigErr
	}
	defer closeTransport()

	scrape, err := metrics.NewScrapeRegistry()
	if err != nil {
		logger.Error("building metrics registry", "error", err)
		return exitConfigErr
	}
	rec := recorder.New(scrape.PrometheusRegistry(), "feo_agent_cycle_duration_seconds")

	log := &adas.Log{}
	statusHandler := activity.NewStatusHandler()
	hooks, err := buildHooks(cfg, assignment, log, logger, statusHandler)
	if err != nil {
		logger.Error("building activity hooks", "error", err)
		return exitConfigErr
	}

	agentProg, err := agent.Build(agent.Config{
		App:    a.app,
		Agent:  agentID.String(),
		Bus:    bus,
		Period: period,
		Hooks:  hooks,
	})
	if err != nil {
		logger.Error("building local agent orchestrator", "error", err)
		return exitConfigErr
	}
	agentProg.Logger = logger.Logger
	agentProg.CycleEventPrefix = a.app + "/" + agentID.String()
	agentProg.OnCycle = rec.Observe

	diag := startDiagnosticsServer(a.listenAddr, scrape, statusHandler, cfg.Names, logger)
	defer diag.Close()

	var globalProg *program.Program
	if agentID == cfg.PrimaryAgent {
		globalProg, err = global.Build(global.Config{
			App:    a.app,
			Bus:    bus,
			Period: period,
			Config: cfg,
		})
		if err != nil {
			logger.Error("building global orchestrator", "error", err)
			return exitConfigErr
		}
		globalProg.Logger = logger.Logger
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return agentProg.Run(gctx) })
	if globalProg != nil {
		group.Go(func() error { return globalProg.Run(gctx) })
	}

	if err := group.Wait(); err != nil {
		logger.Error("agent run failed", "error", err)
		return exitRunFailure
	}
	return exitOK
}

func buildBus(a args) (*eventbus.Bus, func(), error) {
	if a.redisAddr == "" {
		return eventbus.New(eventbus.WithTransport(eventbus.LocalTransport{})), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: a.redisAddr})
	transport := eventbus.NewRedisTransport(client, a.app+"/events/")
	bus := eventbus.New(eventbus.WithTransport(transport))
	return bus, func() { _ = client.Close() }, nil
}

func buildHooks(cfg *depgraph.Config, assignment depgraph.AgentAssignment, log *adas.Log, logger *logging.Logger, statusHandler *activity.StatusHandler) ([]activity.Hooks, error) {
	factories := adasFactories(log)
	hooks := make([]activity.Hooks, 0, len(assignment.Activities))
	for _, id := range assignment.Activities {
		factory, ok := factories[id]
		if !ok {
			return nil, fmt.Errorf("no activity registered for id %s", id)
		}
		name := cfg.Names.Name(id)
		handle := activity.NewHandle(id, name, factory(id)).WithStatus(logger.Logger, statusHandler)
		hooks = append(hooks, activity.NewHooks(handle))
	}
	return hooks, nil
}

// adasFactories builds the registry for the shipped examples/adas fixtures,
// keyed by the activity ids examples/adas.DependencyGraphJSON assigns them.
func adasFactories(log *adas.Log) map[ids.ActivityID]activity.Factory {
	return map[ids.ActivityID]activity.Factory{
		adas.Camera:         func(ids.ActivityID) activity.Activity { return adas.NewCamera(log) },
		adas.Radar:          func(ids.ActivityID) activity.Activity { return adas.NewRadar(log) },
		adas.NeuralNet:      func(ids.ActivityID) activity.Activity { return adas.NewNeuralNet(log) },
		adas.EnvRenderer:    func(ids.ActivityID) activity.Activity { return adas.NewEnvRenderer(log) },
		adas.EmergencyBrake: func(ids.ActivityID) activity.Activity { return adas.NewEmergencyBrake(log) },
		adas.BrakeCtl:       func(ids.ActivityID) activity.Activity { return adas.NewBrakeCtl(log) },
		adas.LaneAssist:     func(ids.ActivityID) activity.Activity { return adas.NewLaneAssist(log) },
		adas.SteerCtl:       func(ids.ActivityID) activity.Activity { return adas.NewSteerCtl(log) },
	}
}

type diagnosticsServer struct {
	srv *http.Server
}

func startDiagnosticsServer(addr string, scrape *metrics.ScrapeRegistry, statusHandler *activity.StatusHandler, names *ids.Names, logger *logging.Logger) *diagnosticsServer {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", scrape.Handler())
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		statuses := statusHandler.All()
		named := make(map[string]string, len(statuses))
		for id, status := range statuses {
			named[names.Name(id)] = status
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(named)
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("diagnostics server stopped", "error", err)
		}
	}()
	return &diagnosticsServer{srv: srv}
}

func (d *diagnosticsServer) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = d.srv.Shutdown(ctx)
}

