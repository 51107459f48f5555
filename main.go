package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/njyeung/sofa/backend"
	"github.com/njyeung/sofa/config"
	"github.com/njyeung/sofa/player"
	"github.com/njyeung/sofa/session"
	"github.com/njyeung/sofa/telemetry"
	"github.com/njyeung/sofa/tui"
)

func main() {
	configDir := flag.String("config", config.DefaultDir(), "config directory")
	webLogin := flag.Bool("web-login", false, "sign in through the browser")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: sofa [flags] <video-id>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	videoID := flag.Arg(0)
	if videoID == "" {
		flag.Usage()
		os.Exit(2)
	}

	settings, err := config.Load(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// the terminal belongs to the TUI, so logs go to a file
	logFile, err := os.OpenFile(settings.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := log.With(log.NewStdLogger(logFile),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
	)
	log.SetLogger(logger)
	helper := log.NewHelper(log.With(logger, "module", "main"))

	meters := sdkmetric.NewMeterProvider()
	tracer := sdktrace.NewTracerProvider()
	otel.SetMeterProvider(meters)
	otel.SetTracerProvider(tracer)
	defer func() {
		ctx := context.Background()
		_ = tracer.Shutdown(ctx)
		_ = meters.Shutdown(ctx)
	}()
	reporter := telemetry.New(meters, logger)

	sess := session.New()
	if err := sess.Load(settings.SessionPath()); err != nil {
		helper.Warnf("restore session: %v", err)
	} else if sess.SignedIn() {
		helper.Infof("restored %s session", sess.Domain())
	}

	api, err := backend.NewHTTPBackend(backend.Options{
		BaseURL:  settings.APIURL,
		Timeout:  settings.RequestTimeout,
		Session:  sess,
		Reporter: reporter,
		Logger:   logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// open the audio device before the TUI takes the screen
	if err := player.InitSpeaker(); err != nil {
		helper.Warnf("audio disabled: %v", err)
	}
	av := player.NewAVPlayer(logger)

	model := tui.NewModel(tui.Config{
		Settings: settings,
		API:      api,
		Session:  sess,
		Player:   av,
		Reporter: reporter,
		Logger:   logger,
		VideoID:  videoID,
		WebLogin: *webLogin,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
