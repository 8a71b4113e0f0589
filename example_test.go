package teachcam_test

import (
	"context"
	"fmt"
	"log"

	"github.com/kestrelvision/teachcam"
	"github.com/kestrelvision/teachcam/adapters"
	"github.com/kestrelvision/teachcam/capture/webcam"
	"github.com/kestrelvision/teachcam/samples"
	"github.com/kestrelvision/teachcam/train"
)

// Example shows a full teaching session: capture, train, live classify.
func Example_basic() {
	source, err := webcam.Open(webcam.Config{})
	if err != nil {
		log.Fatal(err)
	}

	// Credentials come from VOYAGEAI_API_KEY.
	extractor, err := adapters.NewVoyageExtractorAdapter(nil)
	if err != nil {
		log.Fatal(err)
	}

	session, err := teachcam.NewSession(teachcam.Config{
		Source:    source,
		Extractor: extractor,
		OnProgress: func(u train.EpochUpdate) {
			fmt.Printf("epoch %d loss %.4f\n", u.Epoch, u.Loss)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()

	ctx := context.Background()
	if err := session.LoadExtractor(ctx); err != nil {
		log.Fatal(err)
	}

	// Show the camera something from each class and capture a few samples.
	for i := 0; i < 5; i++ {
		if _, err := session.Capture(ctx, samples.ClassA); err != nil {
			log.Fatal(err)
		}
	}
	for i := 0; i < 5; i++ {
		if _, err := session.Capture(ctx, samples.ClassB); err != nil {
			log.Fatal(err)
		}
	}

	if err := session.Train(ctx); err != nil {
		log.Fatal(err)
	}

	preds, err := session.StartLive(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for p := range preds {
		fmt.Printf("A %.0f%%  B %.0f%%\n", p.A*100, p.B*100)
	}
}
