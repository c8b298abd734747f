package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"talecraft.ai/internal/gamecfg"
	"talecraft.ai/internal/oracle/openrouter"
	persistlog "talecraft.ai/internal/persistence/log"
	"talecraft.ai/internal/persistence/savedb"
	"talecraft.ai/internal/protocol"
	"talecraft.ai/internal/sim/engine"
	"talecraft.ai/internal/sim/entities"
	"talecraft.ai/internal/sim/entitygen"
	"talecraft.ai/internal/sim/player"
	"talecraft.ai/internal/sim/schema"
	"talecraft.ai/internal/sim/timeline"
	"talecraft.ai/internal/transport/dashboard"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/server.yaml", "server config path (missing file falls back to defaults)")
		worldPath  = flag.String("world", "./configs/world.json", "initial world file (regions and starting entities)")
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfgPath := strings.TrimSpace(*configPath)
	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err != nil {
			logger.Printf("config not found (%s); using defaults", cfgPath)
			cfgPath = ""
		}
	}
	cfg, err := gamecfg.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if strings.TrimSpace(*addr) != "" {
		cfg.Listen = *addr
	}
	if strings.TrimSpace(*dataDir) != "" {
		cfg.Data.Dir = *dataDir
	}
	_ = os.MkdirAll(cfg.Data.Dir, 0o755)

	rules := ""
	if p := strings.TrimSpace(cfg.Sim.RulesPath); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			logger.Fatalf("load rules: %v", err)
		}
		rules = string(b)
	}

	library, err := schema.Load(cfg.Sim.AttributeSeedPath)
	if err != nil {
		logger.Fatalf("load attribute seed: %v", err)
	}

	store := entities.NewStore()
	store.SetLogger(logger)
	store.SetHistoryLimit(cfg.Sim.HistoryLimit)

	tl := timeline.NewLog()

	playerState := player.New(player.Status{
		Health: cfg.Player.MaxHealth, MaxHealth: cfg.Player.MaxHealth,
		Energy: cfg.Player.MaxEnergy, MaxEnergy: cfg.Player.MaxEnergy,
	})
	for _, s := range cfg.Player.Stats {
		if err := playerState.DefineStat(s.Name, s.TierNames, s.Value, s.Tier); err != nil {
			logger.Fatalf("define stat %s: %v", s.Name, err)
		}
	}

	if err := loadWorldFile(strings.TrimSpace(*worldPath), store, logger); err != nil {
		logger.Fatalf("load world: %v", err)
	}

	// Persistence: compressed JSONL logs plus the queryable save index.
	// Both are optional; the sim runs fine without either.
	var timelineSinks []timeline.EntrySink
	if cfg.Data.EnableLogs {
		tlLog := persistlog.NewTimelineLogger(cfg.Data.Dir)
		defer tlLog.Close()
		timelineSinks = append(timelineSinks, tlLog)

		chLog := persistlog.NewChangeLogger(cfg.Data.Dir)
		defer chLog.Close()
		store.SetChangeSink(chLog)
	}
	var save *savedb.SaveDB
	session := "ephemeral"
	if cfg.Data.EnableSave {
		save, err = savedb.Open(filepath.Join(cfg.Data.Dir, "save.db"))
		if err != nil {
			logger.Fatalf("open save db: %v", err)
		}
		defer save.Close()
		session = save.SessionID()
		timelineSinks = append(timelineSinks, save)
	}
	if len(timelineSinks) > 0 {
		tl.SetSink(multiSink(timelineSinks))
	}

	apiKey := os.Getenv(cfg.Oracle.APIKeyEnv)
	if apiKey == "" {
		logger.Fatalf("oracle api key env %s is not set", cfg.Oracle.APIKeyEnv)
	}
	oracle, err := openrouter.New(openrouter.Config{
		BaseURL: cfg.Oracle.BaseURL,
		Model:   cfg.Oracle.Model,
		APIKey:  apiKey,
		Timeout: cfg.Oracle.RequestTimeout(),
	})
	if err != nil {
		logger.Fatalf("oracle: %v", err)
	}

	spawner, err := entitygen.New(store.NewID)
	if err != nil {
		logger.Fatalf("spawner: %v", err)
	}

	eng, err := engine.New(engine.Config{
		Origin:             cfg.Sim.Origin,
		ContextWindowTurns: cfg.Sim.ContextWindowTurns,
	}, engine.Deps{
		Timeline: tl,
		Store:    store,
		Library:  library,
		Player:   playerState,
		World: &engine.Binding{
			Store: store, Player: playerState, Timeline: tl, Logger: logger,
		},
		Spawner: spawner,
		Oracle:  oracle,
		Rules:   rules,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	dash := dashboard.NewServer(eng, store, library, playerState, tl, session, logger)
	eng.OnTurnExecuted(func(res engine.TurnResult) {
		if save != nil {
			save.RecordTurn(res)
		}
		dash.Broadcast(res)
	})

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})

	// One turn at a time; concurrent requests get a conflict, not a queue.
	var turnBusy atomic.Bool
	mux.HandleFunc("/v1/turn", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !turnBusy.CompareAndSwap(false, true) {
			writeError(rw, http.StatusConflict, protocol.ErrTurnInFlight, "a turn is already running")
			return
		}
		defer turnBusy.Store(false)

		res, err := eng.RunTurn(r.Context())
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			code := protocol.ErrInternal
			var derr *protocol.DecisionError
			if errors.As(err, &derr) {
				code = derr.Code
			}
			writeError(rw, http.StatusBadGateway, code, err.Error())
			return
		}
		_ = json.NewEncoder(rw).Encode(res)
	})

	mux.HandleFunc("/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(eng.BuildSnapshot())
	})

	mux.HandleFunc("/v1/timeline", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		q := timeline.Query{}
		if s := r.URL.Query().Get("turn"); s != "" {
			turn, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				writeError(rw, http.StatusBadRequest, protocol.ErrInternal, "bad turn parameter")
				return
			}
			q.Window = timeline.TurnOnly(turn)
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(tl.Query(q))
	})

	mux.HandleFunc("/dashboard/v1/bootstrap", dash.BootstrapHandler())
	mux.HandleFunc("/dashboard/v1/ws", dash.WSHandler())

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("session %s listening on %s (model %s)", session, cfg.Listen, cfg.Oracle.Model)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(map[string]string{"code": code, "error": msg})
}

// multiSink fans one timeline entry out to every configured sink.
type multiSink []timeline.EntrySink

func (m multiSink) WriteEntry(e timeline.Entry) error {
	var first error
	for _, s := range m {
		if err := s.WriteEntry(e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
