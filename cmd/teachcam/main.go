// Command teachcam is an interactive terminal frontend for the teaching
// session: capture webcam snapshots for two classes, train the classifier
// head, then watch live probabilities.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/edaniels/golog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kestrelvision/teachcam"
	"github.com/kestrelvision/teachcam/adapters"
	tfliteadapter "github.com/kestrelvision/teachcam/adapters/tflite"
	"github.com/kestrelvision/teachcam/capture"
	"github.com/kestrelvision/teachcam/capture/imagedir"
	"github.com/kestrelvision/teachcam/capture/mjpeg"
	"github.com/kestrelvision/teachcam/capture/webcam"
	"github.com/kestrelvision/teachcam/extractor"
	"github.com/kestrelvision/teachcam/predict"
	"github.com/kestrelvision/teachcam/samples"
	"github.com/kestrelvision/teachcam/train"
)

var (
	flagSource    string
	flagMJPEGURL  string
	flagImageDir  string
	flagExtractor string
	flagModelPath string
	flagModelURL  string
	flagWidthMult float64
	flagPeriod    time.Duration
	flagClassA    string
	flagClassB    string
	flagDebug     bool
)

var (
	barFilled = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	barEmpty  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelTint = lipgloss.NewStyle().Bold(true)
)

func main() {
	root := &cobra.Command{
		Use:   "teachcam",
		Short: "Teach a two-class image classifier from a live video source",
		RunE:  run,
	}

	root.Flags().StringVar(&flagSource, "source", "webcam", "frame source: webcam, mjpeg or dir")
	root.Flags().StringVar(&flagMJPEGURL, "mjpeg-url", "", "MJPEG stream URL (source=mjpeg)")
	root.Flags().StringVar(&flagImageDir, "image-dir", "", "directory of still images (source=dir)")
	root.Flags().StringVar(&flagExtractor, "extractor", "tflite", "embedding extractor: tflite or voyage")
	root.Flags().StringVar(&flagModelPath, "model-path", "", "local .tflite feature extractor file")
	root.Flags().StringVar(&flagModelURL, "model-url", "", "URL to fetch the .tflite model from")
	root.Flags().Float64Var(&flagWidthMult, "width-mult", tfliteadapter.DefaultWidthMultiplier, "MobileNet width multiplier (reporting only)")
	root.Flags().DurationVar(&flagPeriod, "period", predict.DefaultPeriod, "live classification period")
	root.Flags().StringVar(&flagClassA, "class-a", "Class A", "display name for the first class")
	root.Flags().StringVar(&flagClassB, "class-b", "Class B", "display name for the second class")
	root.Flags().BoolVar(&flagDebug, "debug", false, "verbose logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// A .env file is optional; flags and real env vars win.
	_ = godotenv.Load()

	var logger golog.Logger
	if flagDebug {
		logger = golog.NewDevelopmentLogger("teachcam")
	} else {
		logger = golog.NewLogger("teachcam")
	}

	ctx := cmd.Context()

	source, err := buildSource(ctx)
	if err != nil {
		return err
	}

	ext, err := buildExtractor()
	if err != nil {
		return err
	}

	session, err := teachcam.NewSession(teachcam.Config{
		Source:    source,
		Extractor: ext,
		Period:    flagPeriod,
		Logger:    logger,
		OnProgress: func(u train.EpochUpdate) {
			fmt.Printf("  epoch %2d/%d  loss %.4f  accuracy %.0f%%\n",
				u.Epoch, train.DefaultEpochs, u.Loss, u.Accuracy*100)
		},
	})
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Printf("loading embedding model %s...\n", ext.Name())
	if err := session.LoadExtractor(ctx); err != nil {
		return fmt.Errorf("model load failed, restart to try again: %w", err)
	}
	fmt.Printf("model ready (%d dimensions)\n\n", ext.Dimensions())

	return interact(ctx, session)
}

func buildSource(ctx context.Context) (capture.FrameSource, error) {
	switch flagSource {
	case "webcam":
		return webcam.Open(webcam.Config{})
	case "mjpeg":
		if flagMJPEGURL == "" {
			return nil, fmt.Errorf("--mjpeg-url is required with --source=mjpeg")
		}
		return mjpeg.Open(ctx, flagMJPEGURL)
	case "dir":
		if flagImageDir == "" {
			return nil, fmt.Errorf("--image-dir is required with --source=dir")
		}
		return imagedir.New(flagImageDir)
	default:
		return nil, fmt.Errorf("unknown source %q", flagSource)
	}
}

func buildExtractor() (extractor.Extractor, error) {
	switch flagExtractor {
	case "tflite":
		if flagModelPath == "" && flagModelURL == "" {
			return nil, fmt.Errorf("--model-path or --model-url is required with --extractor=tflite")
		}
		return tfliteadapter.New(tfliteadapter.Config{
			ModelPath:       flagModelPath,
			ModelURL:        flagModelURL,
			WidthMultiplier: flagWidthMult,
		}), nil
	case "voyage":
		return adapters.NewVoyageExtractorAdapter(nil)
	default:
		return nil, fmt.Errorf("unknown extractor %q", flagExtractor)
	}
}

func interact(ctx context.Context, session *teachcam.Session) error {
	fmt.Println("commands: a/b capture sample, t train, s start live, x stop live, q quit")

	liveDone := make(chan struct{})
	close(liveDone) // no live loop yet

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "a", "b":
			class := samples.ClassA
			name := flagClassA
			if strings.TrimSpace(scanner.Text()) == "b" {
				class = samples.ClassB
				name = flagClassB
			}
			if _, err := session.Capture(ctx, class); err != nil {
				fmt.Println("capture failed:", err)
				continue
			}
			nA, nB := session.Counts()
			fmt.Printf("captured %s sample (%s: %d, %s: %d)\n", name, flagClassA, nA, flagClassB, nB)

		case "t":
			fmt.Println("training...")
			if err := session.Train(ctx); err != nil {
				fmt.Println("training failed:", err)
				continue
			}
			fmt.Println("classifier ready")

		case "s":
			preds, err := session.StartLive(ctx)
			if err != nil {
				fmt.Println("start failed:", err)
				continue
			}
			liveDone = make(chan struct{})
			go func() {
				defer close(liveDone)
				for p := range preds {
					fmt.Printf("%s  %s\n", renderBar(flagClassA, p.A), renderBar(flagClassB, p.B))
				}
			}()
			fmt.Println("live classification running")

		case "x":
			if err := session.StopLive(); err != nil {
				fmt.Println("stop failed:", err)
				continue
			}
			<-liveDone
			fmt.Println("live classification stopped")

		case "q":
			return nil

		case "":
		default:
			fmt.Println("unknown command")
		}
	}
	return scanner.Err()
}

// renderBar draws one probability as a fixed-width percentage bar.
func renderBar(label string, p float32) string {
	const width = 20
	filled := int(p*width + 0.5)
	if filled > width {
		filled = width
	}
	bar := barFilled.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %s %5.1f%%", labelTint.Render(label), bar, p*100)
}
