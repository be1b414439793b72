package doctor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lingocap/audio"
	"lingocap/encoder"
	"lingocap/recognizer"
	"lingocap/translator"
)

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(source, target string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("lingocap doctor - interactive system diagnostics")
	fmt.Println("================================================")

	allPass := true

	if !checkBackends(source, target) {
		allPass = false
	}
	var heard string
	if allPass {
		var ok bool
		heard, ok = checkMicAndRecognition(source)
		if !ok {
			allPass = false
		}
	}
	if allPass && !checkTranslation(source, target, heard) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See details above.")
	}

	if allPass {
		return 0
	}
	return 1
}

func checkBackends(source, target string) bool {
	fmt.Println()
	fmt.Println("[1/3] Backend configuration")

	if _, err := recognizer.New(recognizer.Config{Language: source, Format: "wav"}, zerolog.Nop()); err != nil {
		fmt.Printf("  FAIL: recognition backend: %v\n", err)
		fmt.Println("  Set GROQ_API_KEY or OPENAI_API_KEY.")
		return false
	}
	fmt.Println("  PASS: recognition backend configured")

	if _, err := translator.New(translator.Config{Source: source, Target: target}, zerolog.Nop()); err != nil {
		fmt.Printf("  FAIL: translation backend: %v\n", err)
		fmt.Println("  Set OLLAMA_URL, OPENAI_API_KEY or GROQ_API_KEY.")
		return false
	}
	fmt.Println("  PASS: translation backend configured")
	return true
}

func checkMicAndRecognition(source string) (string, bool) {
	fmt.Println()
	fmt.Println("[2/3] Microphone and recognition")

	reader := bufio.NewReader(os.Stdin)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return "", false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return "", false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return "", false
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Printf("  FAIL: invalid choice\n")
			return "", false
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	rec, err := recognizer.New(recognizer.Config{Language: source, Format: "wav"}, zerolog.Nop())
	if err != nil {
		fmt.Printf("  FAIL: recognizer: %v\n", err)
		return "", false
	}

	fmt.Println()
	fmt.Printf("Press Enter and speak %s for 3 seconds...", translator.LanguageName(source))
	reader.ReadString('\n')

	stop := make(chan struct{})
	go func() {
		time.Sleep(3 * time.Second)
		close(stop)
	}()

	samples, err := recordSamples(ctx, device, stop)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return "", false
	}
	if len(samples) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return "", false
	}

	fmt.Printf("  Recorded %.1fs, recognizing...\n", float64(len(samples))/float64(encoder.SampleRate))

	res, err := rec.Recognize(context.Background(), samples)
	if err != nil {
		fmt.Printf("  FAIL: recognition error: %v\n", err)
		return "", false
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		fmt.Println("  FAIL: no speech detected")
		return "", false
	}

	fmt.Printf("\n  Recognized text: %s\n\n", text)

	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: recognition verified by user")
		return text, true
	}

	fmt.Println("  FAIL: recognition not confirmed")
	return "", false
}

func recordSamples(ctx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]float32, error) {
	var buf []float32
	var bufMu sync.Mutex
	var stopped bool
	done := make(chan struct{})

	config := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}

	captureDevice, err := ctx.NewCapture(device, config)
	if err != nil {
		return nil, err
	}

	captureDevice.SetCallback(func(data []byte, frameCount uint32) {
		bufMu.Lock()
		if stopped {
			bufMu.Unlock()
			return
		}
		for i := 0; i+1 < len(data); i += 2 {
			s := int16(uint16(data[i]) | uint16(data[i+1])<<8)
			buf = append(buf, float32(s)/32768)
		}
		bufMu.Unlock()
	})

	if err := captureDevice.Start(); err != nil {
		captureDevice.Close()
		return nil, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	<-stop
	close(done)

	captureDevice.Stop()
	fmt.Println(" done")
	captureDevice.Close()

	bufMu.Lock()
	stopped = true
	raw := buf
	bufMu.Unlock()

	return raw, nil
}

func checkTranslation(source, target, heard string) bool {
	fmt.Println()
	fmt.Println("[3/3] Translation")

	tr, err := translator.New(translator.Config{Source: source, Target: target}, zerolog.Nop())
	if err != nil {
		fmt.Printf("  FAIL: translator: %v\n", err)
		return false
	}

	fmt.Printf("  Translating %s -> %s...\n", translator.LanguageName(source), translator.LanguageName(target))

	out, err := tr.Translate(context.Background(), heard, nil)
	if err != nil {
		fmt.Printf("  FAIL: translation error: %v\n", err)
		return false
	}

	fmt.Printf("\n  Translation: %s\n\n", out)

	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Does this look right? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: translation verified by user")
		return true
	}

	fmt.Println("  FAIL: translation not confirmed")
	return false
}
