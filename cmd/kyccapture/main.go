package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/kyccapture/internal/app"
	"github.com/ayusman/kyccapture/internal/capture"
	"github.com/ayusman/kyccapture/internal/config"
	"github.com/ayusman/kyccapture/internal/detector"
	"github.com/ayusman/kyccapture/internal/gate"
	"github.com/ayusman/kyccapture/internal/plugin"
	"github.com/ayusman/kyccapture/internal/server"
	"github.com/ayusman/kyccapture/internal/store"
	"github.com/ayusman/kyccapture/internal/tray"
)

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "data directory")
	flag.IntVar(&cfg.CameraID, "camera", cfg.CameraID, "camera device id")
	flag.IntVar(&cfg.FPS, "fps", cfg.FPS, "frames analyzed per second")
	flag.StringVar(&cfg.Mode, "mode", cfg.Mode, "start a capture immediately: document, face, hand or face_hand")
	flag.StringVar(&cfg.DocumentVariant, "variant", cfg.DocumentVariant, "document flow: stream or scanner")
	flag.StringVar(&cfg.DocumentType, "doc", cfg.DocumentType, "document type: passport or idcard")
	flag.StringVar(&cfg.PluginDir, "plugins", cfg.PluginDir, "plugin directory")
	flag.StringVar(&cfg.CascadePath, "cascade", cfg.CascadePath, "pigo facefinder cascade for the document portrait check")
	flag.StringVar(&cfg.DetectorSocket, "detector-socket", cfg.DetectorSocket, "landmark service address: unix socket path, unix://path or tcp://host:port")
	flag.IntVar(&cfg.DetectorTimeoutMs, "detector-timeout", cfg.DetectorTimeoutMs, "landmark service round trip timeout in milliseconds")
	flag.BoolVar(&cfg.RequireThumb, "require-thumb", cfg.RequireThumb, "reject open palms with a folded thumb")
	flag.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "static web directory")
	flag.BoolVar(&cfg.Tray, "tray", cfg.Tray, "show the system tray menu")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "log every rejected frame")
	orientation := flag.String("orientation", "up", "camera orientation: up, right, down or left")
	flag.Parse()

	fmt.Println("KYC Capture")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	if n, err := st.Sessions().CloseActive(); err != nil {
		log.Printf("Failed to close stale sessions: %v", err)
	} else if n > 0 {
		log.Printf("Closed %d sessions left active by a previous run", n)
	}

	orient, err := capture.ParseOrientation(*orientation)
	if err != nil {
		log.Fatalf("Invalid orientation: %v", err)
	}

	opts := gate.DefaultOptions()
	opts.Sharpness = cfg.Sharpness
	opts.MaxSkew = cfg.MaxSkew
	opts.MinFaceQuality = cfg.MinFaceQuality
	opts.MaxMotion = cfg.MaxMotion
	opts.RequireThumb = cfg.RequireThumb
	opts.Verbose = cfg.Verbose
	if cfg.CascadePath != "" {
		finder, err := detector.NewPortraitFinder(cfg.CascadePath)
		if err != nil {
			log.Printf("Portrait cascade unavailable, using detected faces for the portrait check: %v", err)
		} else {
			opts.Portraits = finder
		}
	}

	plugins := plugin.NewManager(cfg.PluginDir)
	if err := plugins.Discover(); err != nil {
		log.Printf("Failed to discover plugins: %v", err)
	}
	log.Printf("Loaded %d plugins from %s", len(plugins.List()), plugins.PluginDir())

	hub := server.NewEventHub()

	var t *tray.Tray
	var notifier app.Notifier
	if cfg.Tray {
		t = tray.New()
		notifier = t
	}

	a := app.New(app.Config{
		Store:           st,
		CameraID:        cfg.CameraID,
		FPS:             cfg.FPS,
		Orientation:     orient,
		DetectorSocket:  cfg.DetectorSocket,
		DetectorTimeout: time.Duration(cfg.DetectorTimeoutMs) * time.Millisecond,
		Gate:            opts,
		Plugins:         plugin.NewDispatcher(plugins, plugin.NewExecutor(cfg.PluginTimeoutMs)),
		Events:          hub,
		Notifier:        notifier,
	})
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start capture: %v", err)
	}
	defer a.Stop()

	if cfg.Mode != "" {
		if err := startSession(a, cfg, cfg.Mode); err != nil {
			log.Printf("Failed to start %s capture: %v", cfg.Mode, err)
		}
	}

	webDir := cfg.StaticDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Store:      st,
		Controller: a,
		Preview:    a,
		Events:     hub,
	})

	go func() {
		fmt.Printf("Starting server on %s\n", cfg.Addr)
		if err := srv.ListenAndServe(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if t == nil {
		<-sig
		return
	}

	t.OnStart(func(m gate.Mode) {
		if err := startSession(a, cfg, m.String()); err != nil {
			log.Printf("Failed to start %s capture: %v", m, err)
		}
	})
	t.OnRetake(func() {
		if err := a.Retake(); err != nil {
			log.Printf("Retake: %v", err)
		}
	})
	t.OnSettings(func() { openBrowser("http://" + browserAddr(cfg.Addr)) })
	go func() {
		<-sig
		t.Quit()
	}()
	t.Run()
}

func startSession(a *app.App, cfg *config.Config, mode string) error {
	m, err := gate.ParseMode(mode)
	if err != nil {
		return err
	}
	variant, err := gate.ParseVariant(cfg.DocumentVariant)
	if err != nil {
		return err
	}
	doc, err := gate.ParseDocumentType(cfg.DocumentType)
	if err != nil {
		return err
	}
	_, err = a.StartSession(m, variant, doc)
	return err
}

func browserAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}

// findWebDir checks "web", "../web", "../../web" and <data>/web in order.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
