package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"golang.org/x/term"

	"lingocap/audio"
	"lingocap/caption"
	"lingocap/doctor"
	"lingocap/encoder"
	"lingocap/log"
	"lingocap/pipeline"
	"lingocap/recognizer"
	"lingocap/shutdown"
	"lingocap/translator"
)

var version = "dev"

// showSource mirrors the -show-source flag; the TUI and console sinks
// both read it.
var showSource bool

func main() {
	run()
}

func run() {
	cfg := pipeline.DefaultConfig()

	sourceFlag := flag.String("source", "ru", "ISO 639-1 code of the spoken language")
	targetFlag := flag.String("target", "en", "ISO 639-1 code of the caption language")
	chunkFlag := flag.Duration("chunk", cfg.ChunkDuration, "Audio accumulated per segment")
	silenceFlag := flag.Float64("silence-floor", cfg.SilenceFloor, "RMS below which a chunk is skipped")
	denoiseFlag := flag.Bool("denoise", true, "High-pass filter and noise gate on captured audio")
	ctxEntriesFlag := flag.Int("context-entries", cfg.ContextEntries, "Max translation context pairs")
	ctxTokensFlag := flag.Int("context-tokens", cfg.ContextTokens, "Approximate context token budget (0 = entries bound only)")
	queueFlag := flag.Int("queue", cfg.QueueCapacity, "Per-stage queue depth")
	recTimeoutFlag := flag.Duration("recognize-timeout", cfg.RecognizeTimeout, "Recognition request timeout")
	trTimeoutFlag := flag.Duration("translate-timeout", cfg.TranslateTimeout, "Translation request timeout (per attempt)")
	trRetriesFlag := flag.Int("translate-retries", cfg.TranslateRetries, "Extra translation attempts after the first")
	confidenceFlag := flag.Float64("confidence", cfg.ConfidenceFloor, "Transcripts below this confidence are marked uncertain")
	gapResetFlag := flag.Duration("gap-reset", cfg.GapReset, "Reset translation context after a capture gap this long (0 = never)")
	drainFlag := flag.Duration("drain-grace", cfg.DrainGrace, "Budget for in-flight segments on shutdown")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	listDevicesFlag := flag.Bool("list-devices", false, "List capture devices and exit")
	replayFlag := flag.String("replay", "", "Caption a WAV file instead of the microphone")
	realtimeFlag := flag.Bool("realtime", true, "Pace -replay at capture speed")
	formatFlag := flag.String("format", "wav", "Recognition upload format: wav or flac")
	consoleFlag := flag.Bool("console", false, "Plain console output instead of the TUI")
	showSourceFlag := flag.Bool("show-source", false, "Show recognized source text under each caption")
	listenFlag := flag.String("listen", "", "Serve captions over WebSocket (e.g. :8780)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location, use ./ for current dir)")
	debugFlag := flag.Bool("debug", false, "Verbose diagnostic logging")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("lingocap %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(*sourceFlag, *targetFlag))
	}

	switch *formatFlag {
	case "wav", "flac":
	default:
		fmt.Printf("Error: unknown format %q (use wav or flac)\n", *formatFlag)
		os.Exit(1)
	}

	if *listDevicesFlag {
		os.Exit(listDevices())
	}

	showSource = *showSourceFlag

	cfg.ChunkDuration = *chunkFlag
	cfg.SilenceFloor = *silenceFlag
	cfg.Denoise.Enabled = *denoiseFlag
	cfg.ContextEntries = *ctxEntriesFlag
	cfg.ContextTokens = *ctxTokensFlag
	cfg.QueueCapacity = *queueFlag
	cfg.RecognizeTimeout = *recTimeoutFlag
	cfg.TranslateTimeout = *trTimeoutFlag
	cfg.TranslateRetries = *trRetriesFlag
	cfg.ConfidenceFloor = *confidenceFlag
	cfg.GapReset = *gapResetFlag
	cfg.DrainGrace = *drainFlag

	if err := log.Init(*debugFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	rec, err := recognizer.New(recognizer.Config{Language: *sourceFlag, Format: *formatFlag}, log.Logger())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	tr, err := translator.New(translator.Config{Source: *sourceFlag, Target: *targetFlag}, log.Logger())
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Audio source: replayed file or live microphone
	var src pipeline.SampleSource
	var stream *audio.Stream
	var deviceLine string
	if *replayFlag != "" {
		fileSrc, err := audio.NewFileSource(*replayFlag, cfg.SampleRate, *realtimeFlag)
		if err != nil {
			log.Errorf("replay open error: %v", err)
			fmt.Printf("Error opening %s: %v\n", *replayFlag, err)
			os.Exit(1)
		}
		src = fileSrc
		deviceLine = "replay: " + filepath.Base(*replayFlag)
	} else {
		audioCtx, err := audio.NewContext()
		if err != nil {
			log.Errorf("audio context init error: %v", err)
			fmt.Printf("Error initializing audio context: %v\n", err)
			os.Exit(1)
		}
		defer audioCtx.Close()

		selectedDevice, err := pickDevice(audioCtx, *deviceFlag, *setupFlag)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		captureConfig := audio.CaptureConfig{
			SampleRate: uint32(cfg.SampleRate),
			Channels:   encoder.Channels,
		}
		captureDevice, err := audioCtx.NewCapture(selectedDevice, captureConfig)
		if err != nil {
			log.Errorf("capture device init error: %v", err)
			fmt.Printf("Error initializing capture device: %v\n", err)
			os.Exit(1)
		}
		defer captureDevice.Close()

		stream = audio.NewStream(captureDevice)
		defer stream.Close()
		if err := captureDevice.Start(); err != nil {
			log.Errorf("capture start error: %v", err)
			fmt.Printf("Error starting capture: %v\n", err)
			os.Exit(1)
		}
		defer captureDevice.Stop()

		src = stream
		deviceLine = deviceLineText(selectedDevice)
	}

	// Caption sinks
	useTUI := !*consoleFlag && *replayFlag == "" && term.IsTerminal(int(os.Stdout.Fd()))

	var sinks caption.Multi
	if useTUI {
		sinks = append(sinks, tuiSink{})
	} else {
		sinks = append(sinks, caption.NewConsole(os.Stdout, showSource))
	}
	sinks = append(sinks, transcriptSink{})

	var ws *caption.WSServer
	if *listenFlag != "" {
		ws = caption.NewWSServer(*listenFlag, log.Logger())
		go func() {
			if err := ws.ListenAndServe(); err != nil {
				log.Errorf("caption server error: %v", err)
			}
		}()
		defer ws.Close()
		sinks = append(sinks, ws)
	}

	stats := &captionStats{}
	sink := caption.NewBuffered(measuredSink{next: sinks, stats: stats}, 2*cfg.QueueCapacity, log.Logger())
	defer sink.Close()

	orch := pipeline.NewOrchestrator(src, rec, tr, sink, cfg, log.Logger())
	log.SessionStart(orch.RunID(), backendName("GROQ_API_KEY", "groq", "OPENAI_API_KEY", "openai"),
		translatorName(), *sourceFlag, *targetFlag)

	if err := orch.Start(context.Background()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if useTUI {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			orch.Stop()
		}()

		tuiSend(PhaseMsg{Text: "LIVE"})
		tuiSend(ModeLineMsg{Text: modeLineText(*sourceFlag, *targetFlag)})
		tuiSend(DeviceLineMsg{Text: deviceLine})
		go feedTUI(orch, stream, stats)
	} else {
		fmt.Printf("lingocap %s  %s  %s\n", version, modeLineText(*sourceFlag, *targetFlag), deviceLine)
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		log.Info("signal_stop")
		tuiSend(PhaseMsg{Text: "DRAINING"})
		orch.Stop()
		<-sigChan // second signal: skip the drain
		os.Exit(1)
	}()

	<-orch.Done()

	if useTUI {
		tuiMu.Lock()
		p := tuiProgram
		tuiProgram = nil
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
			p.Wait()
		}
	}

	sink.Close()
	snap := stats.snapshot()
	log.SessionEnd(snap.Delivered, snap.Failed)
	log.Close()

	if err := orch.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if snap.Delivered > 0 {
		fmt.Println(snap.String())
	}
}

// feedTUI pushes audio level and stats updates until the pipeline
// finishes.
func feedTUI(orch *pipeline.Orchestrator, stream *audio.Stream, stats *captionStats) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-orch.Done():
			return
		case <-ticker.C:
			if stream != nil {
				tuiSend(AudioLevelMsg{Level: stream.Level()})
			}
			tuiSend(StatsMsg{Snapshot: stats.snapshot()})
			if orch.State() == pipeline.StateDraining {
				tuiSend(PhaseMsg{Text: "DRAINING"})
			}
		}
	}
}

func pickDevice(ctx audio.Context, name string, setup bool) (*audio.DeviceInfo, error) {
	if name != "" {
		devices, err := ctx.Devices()
		if err != nil {
			return nil, fmt.Errorf("enumerating devices: %w", err)
		}
		for i := range devices {
			if devices[i].Name == name {
				return &devices[i], nil
			}
		}
		return nil, fmt.Errorf("device not found: %s", name)
	}
	if setup {
		dev, err := audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			return nil, nil
		}
		return dev, nil
	}
	return nil, nil
}

func listDevices() int {
	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("Error initializing audio: %v\n", err)
		return 1
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("Error listing devices: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("No capture devices found.")
		return 1
	}
	for _, d := range devices {
		suffix := ""
		if audio.IsBluetooth(d.Name) {
			suffix = " (BT)"
		}
		fmt.Printf("  %s%s\n", d.Name, suffix)
	}
	return 0
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func modeLineText(source, target string) string {
	return fmt.Sprintf("[%s -> %s | %s -> %s]",
		translator.LanguageName(source), translator.LanguageName(target),
		backendName("GROQ_API_KEY", "groq", "OPENAI_API_KEY", "openai"), translatorName())
}

// backendName mirrors the provider selection order of recognizer.New.
func backendName(key1, name1, key2, name2 string) string {
	if os.Getenv(key1) != "" {
		return name1
	}
	if os.Getenv(key2) != "" {
		return name2
	}
	return "none"
}

// translatorName mirrors the provider selection order of translator.New.
func translatorName() string {
	if os.Getenv("OLLAMA_URL") != "" {
		return "ollama"
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return "openai"
	}
	if os.Getenv("GROQ_API_KEY") != "" {
		return "groq"
	}
	return "none"
}

// transcriptSink appends every caption to the transcript log.
type transcriptSink struct{}

func (transcriptSink) Display(ts pipeline.TranslatedSegment) {
	if ts.Failed {
		return
	}
	log.CaptionText(ts.SourceText, ts.Translated)
}
