// Command flatten composes a placement list onto a document image offline:
// it reads the base image and a JSON placement array from disk, resolves each
// signature id to <id>.png in the signatures directory, and writes the
// flattened PNG.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wudi/signkit/asset"
	"github.com/wudi/signkit/composite"
)

type options struct {
	basePath       string
	placementsPath string
	signaturesDir  string
	outPath        string
	stamp          string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flatten: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "flatten: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/flatten [flags] <base-image>\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.placementsPath, "placements", "", "JSON file with the normalized placement array (required)")
	flag.StringVar(&opts.signaturesDir, "signatures", ".", "Directory holding <signature-id>.png payloads")
	flag.StringVar(&opts.outPath, "out", "signed.png", "Output path for the flattened image")
	flag.StringVar(&opts.stamp, "stamp", "", "Optional stamp text drawn bottom-right")
	flag.Parse()

	if flag.NArg() != 1 {
		return opts, fmt.Errorf("exactly one base image argument expected")
	}
	opts.basePath = flag.Arg(0)
	if opts.placementsPath == "" {
		return opts, fmt.Errorf("-placements is required")
	}
	return opts, nil
}

func run(opts options) error {
	raw, err := os.ReadFile(opts.placementsPath)
	if err != nil {
		return err
	}
	var placements []asset.NormalizedPlacement
	if err := json.Unmarshal(raw, &placements); err != nil {
		return fmt.Errorf("parse placements: %w", err)
	}

	resolver := composite.ResolverFunc(func(_ context.Context, id string) (*asset.SignatureAsset, error) {
		payload, err := os.ReadFile(filepath.Join(opts.signaturesDir, id+".png"))
		if err != nil {
			return nil, err
		}
		return &asset.SignatureAsset{ID: id, Payload: payload}, nil
	})
	loader := composite.LoaderFunc(func(_ context.Context, ref string) ([]byte, error) {
		return os.ReadFile(ref)
	})

	var compOpts []composite.Option
	if opts.stamp != "" {
		compOpts = append(compOpts, composite.WithStamp(opts.stamp))
	}
	comp, err := composite.New(resolver, loader, compOpts...)
	if err != nil {
		return err
	}
	res, err := comp.Compose(context.Background(), opts.basePath, placements)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.outPath, res.Data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d placements, %d bytes)\n", opts.outPath, len(placements), len(res.Data))
	return nil
}
