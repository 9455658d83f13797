// Command tasqsymd is the tasqsym daemon: it wires the skill library, the
// kinematics/controller pipeline, and the session driver to whichever of
// the three control-channel transports (HTTP, MQTT, websocket) are
// enabled, then runs until SIGINT/SIGTERM.
//
// Robot-specific model/adapter/sensor/combiner implementations are a
// deployment concern, not a daemon concern: a deployer forks this file
// (or blank-imports their own registration package ahead of main, the
// way roboserver's main.go does `_ "roboserver/robots"`) to populate the
// registries built here before Driver.Start runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"tasqsym/adapter"
	"tasqsym/blackboard"
	"tasqsym/config"
	"tasqsym/controller"
	"tasqsym/httpapi"
	"tasqsym/kinematics"
	"tasqsym/logging"
	"tasqsym/registry"
	"tasqsym/runlog"
	"tasqsym/session"
	"tasqsym/skill"
	"tasqsym/skills"
	"tasqsym/transport/mqttchan"
	"tasqsym/transport/wschan"
)

func main() {
	var (
		configPath     = flag.String("config", "", "optional setup document (YAML) to apply at startup")
		httpAddr       = flag.String("http-addr", ":8080", "operator HTTP API listen address")
		wsAddr         = flag.String("ws-addr", ":8081", "websocket control-channel listen address")
		mqttBroker     = flag.String("mqtt-broker", "", "MQTT broker URL; empty disables the MQTT transport")
		mqttClientID   = flag.String("mqtt-client-id", "tasqsymd", "MQTT client id")
		mongoURI       = flag.String("mongo-uri", "", "MongoDB URI for run logging; empty disables run logging")
		mongoDatabase  = flag.String("mongo-database", "tasqsym", "MongoDB database name for run logging")
		dev            = flag.Bool("dev", false, "use the development (console) logger instead of the production (JSON) one")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "tasqsymd: loading .env: %v\n", err)
	}

	logger, err := newLogger(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tasqsymd: logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	board := blackboard.New()

	skillReg := registry.New[skill.SkillFactory]()
	decoderReg := registry.New[skill.DecoderFactory]()
	skills.RegisterDefaultLibrary(skillReg, decoderReg)
	skillIface := skill.NewInterface(skillReg, decoderReg, board)

	models := kinematics.NewModelRegistry()
	adapters := controller.NewAdapterRegistry()
	sensors := controller.NewSensorRegistry()
	combiners := adapter.NewCombinerRegistry()

	runLog := buildRunLog(ctx, *mongoURI, *mongoDatabase, logger)

	fanout := newTransportFanout(logger.Sublogger("transport"))
	driver := session.NewDriver(models, adapters, sensors, combiners, skillIface, board, fanout, runLog, logger.Sublogger("session"))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := driver.Start(ctx); err != nil {
			logger.Errorw("session driver stopped", "error", err)
		}
	}()

	api := httpapi.New(driver, logger.Sublogger("httpapi"))
	fanout.Add("httpapi", api)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := api.ListenAndServe(ctx, *httpAddr); err != nil && ctx.Err() == nil {
			logger.Errorw("httpapi server stopped", "error", err)
		}
	}()

	if *mqttBroker != "" {
		mqttCh, err := mqttchan.Connect(ctx, mqttchan.Config{BrokerURL: *mqttBroker, ClientID: *mqttClientID}, driver, logger.Sublogger("mqttchan"))
		if err != nil {
			logger.Errorw("mqtt transport disabled", "error", err)
		} else {
			fanout.Add("mqtt", mqttCh)
			defer mqttCh.Close()
		}
	}

	startWebsocketServer(ctx, &wg, *wsAddr, driver, fanout, logger)

	if *configPath != "" {
		doc, err := config.Load(*configPath)
		if err != nil {
			logger.Errorw("initial config load failed", "error", err, "path", *configPath)
		} else {
			driver.EnqueueSetup(session.SetupCommand{ID: "startup", Command: "setup", Content: doc})
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ctx.Done():
	case <-sigs:
		logger.Infow("received termination signal, shutting down")
	}
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Infow("shut down cleanly")
	case <-time.After(30 * time.Second):
		logger.Warnw("shutdown timed out, forcing exit")
	}
}

func newLogger(dev bool) (logging.Logger, error) {
	if dev {
		return logging.NewDevelopment()
	}
	return logging.NewProduction()
}

// buildRunLog connects a runlog.Store when a Mongo URI is given, logging
// (never failing the daemon) when it can't — run logging is a nice-to-have,
// not load-bearing for the daemon's core purpose.
func buildRunLog(ctx context.Context, uri, database string, logger logging.Logger) session.RunLogSink {
	if uri == "" {
		return nil
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		logger.Errorw("run log disabled: connecting to mongo", "error", err)
		return nil
	}
	mongoClient, err := runlog.NewMongoClient(ctx, runlog.MongoOptions{Client: client, Database: database})
	if err != nil {
		logger.Errorw("run log disabled: preparing mongo client", "error", err)
		return nil
	}
	store, err := runlog.NewStore(mongoClient)
	if err != nil {
		logger.Errorw("run log disabled: building store", "error", err)
		return nil
	}
	return store
}

// startWebsocketServer runs a single-route HTTP server upgrading every
// request on wsAddr to a wschan.Channel, registering each into fanout
// under a connection-unique name.
func startWebsocketServer(ctx context.Context, wg *sync.WaitGroup, addr string, driver *session.Driver, fanout *transportFanout, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	var nextConn atomic.Uint64
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ch, err := wschan.Upgrade(w, r, driver, logger.Sublogger("wschan"))
		if err != nil {
			logger.Warnw("websocket upgrade failed", "error", err)
			return
		}
		fanout.Add(fmt.Sprintf("ws-%d", nextConn.Add(1)), ch)
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("websocket server stopped", "error", err)
		}
	}()

	return srv
}
