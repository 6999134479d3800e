// Command server serves the Polish lemmatizer and tagger as an HTML form
// and a JSON API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/cnc-gokit/uniresp"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	stanzapl "github.com/tassa-yoniso-manasi-karoto/go-stanzapl"
	"github.com/tassa-yoniso-manasi-karoto/go-stanzapl/cnf"
	"github.com/tassa-yoniso-manasi-karoto/go-stanzapl/web"
)

var (
	version   string
	buildDate string
	gitCommit string
)

func managerOptions(conf *cnf.StanzaConf) []stanzapl.ManagerOption {
	opts := []stanzapl.ManagerOption{
		stanzapl.WithQueryTimeout(conf.QueryTimeout()),
		stanzapl.WithLightweightMode(conf.IsLightweight()),
		stanzapl.WithDownloadProgressCallback(func(current, total int64, status string) {
			log.Debug().Int64("current", current).Int64("total", total).Msg(status)
		}),
	}
	if conf.ProjectName != "" {
		opts = append(opts, stanzapl.WithProjectName(conf.ProjectName))
	}
	if conf.Image != "" {
		opts = append(opts, stanzapl.WithImage(conf.Image))
	}
	if len(conf.Processors) > 0 {
		opts = append(opts, stanzapl.WithProcessors(conf.Processors...))
	}
	return opts
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "stanzapl - Polish lemmatizer and tagger\n\nUsage:\n\t%s [options] start [config.json]\n\t%s [options] version\n",
			filepath.Base(os.Args[0]), filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	action := flag.Arg(0)
	if action == "version" {
		fmt.Printf("stanzapl %s\nbuild date: %s\nlast commit: %s\n", version, buildDate, gitCommit)
		return

	} else if action != "start" {
		log.Fatal().Msgf("Unknown action %s", action)
	}
	conf := cnf.LoadConfig(flag.Arg(1))
	logging.SetupLogging(conf.Logging)
	stanzapl.Logger = log.Logger
	log.Info().Msg("Starting stanzapl")
	cnf.ApplyDefaults(conf)

	tags, err := stanzapl.LoadTagTable(conf.TagTablePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", conf.TagTablePath).Msg("failed to load tag table")
	}
	log.Info().Int("size", tags.Len()).Msgf("loaded tag table %s", conf.TagTablePath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr, err := stanzapl.NewManager(ctx, managerOptions(conf.Stanza)...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Stanza service manager")
	}
	log.Info().Bool("lightweight", mgr.IsLightweightMode()).Msg("pulling Stanza service image")
	if err := mgr.PullImage(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to pull Stanza service image")
	}
	if conf.Stanza.Recreate {
		err = mgr.InitRecreate(ctx, false)

	} else {
		err = mgr.Init(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start Stanza service")
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Stanza service")
		}
	}()
	log.Info().Msg("Stanza service ready")

	corrector := stanzapl.NewCorrector(
		tags,
		stanzapl.WithVerifiedOverwrite(conf.VerifiedOverwrite),
	)
	tagger := stanzapl.NewTagger(mgr, corrector)

	if !conf.Logging.Level.IsDebugMode() {
		gin.SetMode(gin.ReleaseMode)
	}

	tpl, err := web.LoadTemplates()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load templates")
	}

	engine := gin.New()
	engine.SetHTMLTemplate(tpl)
	engine.Use(gin.Recovery())
	engine.Use(logging.GinMiddleware())
	engine.NoMethod(uniresp.NoMethodHandler)
	engine.NoRoute(uniresp.NotFoundHandler)

	actions := web.NewActions(tagger, mgr, tags, conf.MaxTextLength)
	actions.RegisterRoutes(engine)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: conf.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})

	log.Info().Msgf("starting to listen at %s", conf.ServerAddr())
	srv := &http.Server{
		Handler:      corsHandler.Handler(engine),
		Addr:         conf.ServerAddr(),
		WriteTimeout: time.Duration(conf.ServerWriteTimeoutSecs) * time.Second,
		ReadTimeout:  time.Duration(conf.ServerReadTimeoutSecs) * time.Second,
	}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Send()
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown request received")

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutDown); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
}
