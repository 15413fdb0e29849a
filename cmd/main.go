package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/openpharma/nerpack"
	"github.com/openpharma/nerpack/convert"
	"github.com/openpharma/nerpack/options"
	"github.com/openpharma/nerpack/smoketest"
	"github.com/openpharma/nerpack/util/fileutil"
)

var modelName string
var onnxFilename string
var outputPath string
var sequenceLength int
var threshold float64
var modelsDir string
var sharedLibraryPath string
var backend string
var skipTest bool

var convertCommand = &cli.Command{
	Name:  "convert",
	Usage: "Convert a huggingface token-classification model to an on-device inference package",
	Description: `Convert downloads the model if needed, traces one fixed-shape forward pass through it,
and writes a .nerpack package plus vocab.json, labels.json and special_tokens.json to the output folder.
The model must provide an onnx export and a tokenizer.json file.`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Model name on the hub or path to a local model folder",
			Aliases:     []string{"m"},
			Destination: &modelName,
			Value:       "d4data/biomedical-ner-all",
		},
		&cli.StringFlag{
			Name:        "onnxFilename",
			Usage:       "Name of the .onnx file when the model folder holds several",
			Destination: &onnxFilename,
		},
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Folder where to write the package and sidecar files",
			Aliases:     []string{"o"},
			Destination: &outputPath,
			Value:       ".",
		},
		&cli.IntFlag{
			Name:        "sequenceLength",
			Usage:       "Fixed sequence length of the converted graph",
			Aliases:     []string{"l"},
			Destination: &sequenceLength,
			Value:       convert.DefaultSequenceLength,
		},
		&cli.Float64Flag{
			Name:        "threshold",
			Usage:       "Minimum confidence for the smoke test to report an entity",
			Aliases:     []string{"t"},
			Destination: &threshold,
			Value:       float64(smoketest.DefaultThreshold),
		},
		&cli.StringFlag{
			Name:        "modelFolder",
			Usage:       "Folder where to store downloaded models. Falls back to $HOME/nerpack/models if not specified",
			Aliases:     []string{"f"},
			Destination: &modelsDir,
		},
		&cli.StringFlag{
			Name:        "onnxruntimeSharedLibrary",
			Usage:       "Directory holding the onnxruntime shared library (ORT backend only)",
			Aliases:     []string{"s"},
			Destination: &sharedLibraryPath,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "Inference backend used for tracing: GO or ORT",
			Aliases:     []string{"b"},
			Destination: &backend,
			Value:       "GO",
		},
		&cli.BoolFlag{
			Name:        "skip-test",
			Usage:       "Skip the smoke test of the saved package",
			Destination: &skipTest,
		},
	},
	Action: runConvert,
}

func runConvert(ctx *cli.Context) error {
	if modelsDir == "" {
		userDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		modelsDir = fileutil.PathJoinSafe(userDir, "nerpack", "models")
	}

	modelPath, modelID, err := resolveModel(modelName)
	if err != nil {
		return err
	}

	session, err := newConvertSession()
	if err != nil {
		return err
	}
	defer func() {
		if destroyErr := session.Destroy(); destroyErr != nil {
			log.Warn().Err(destroyErr).Msg("destroying session")
		}
	}()

	log.Info().Str("model", modelID).Int("sequenceLength", sequenceLength).Msg("converting model")
	result, err := session.Convert(nerpack.ConvertConfig{
		ModelPath:      modelPath,
		ModelID:        modelID,
		OnnxFilename:   onnxFilename,
		OutputDir:      outputPath,
		SequenceLength: sequenceLength,
	})
	if err != nil {
		return fmt.Errorf("conversion failed: %w (the model must provide an onnx export and a tokenizer.json file)", err)
	}

	log.Info().
		Str("package", result.PackagePath).
		Int("labels", result.NumLabels).
		Msg("conversion complete")
	fmt.Printf("Saved package:  %s\n", result.PackagePath)
	fmt.Printf("Vocabulary:     %s\n", result.Sidecars.Vocab)
	fmt.Printf("Labels:         %s\n", result.Sidecars.Labels)
	fmt.Printf("Special tokens: %s\n", result.Sidecars.SpecialTokens)

	if skipTest {
		return nil
	}

	report := smoketest.Run(smoketest.Config{
		PackagePath:       result.PackagePath,
		LabelsPath:        result.Sidecars.Labels,
		SpecialTokensPath: result.Sidecars.SpecialTokens,
		Tokenizer:         result.Model.Tokenizer,
		Threshold:         float32(threshold),
	})
	report.Print(os.Stdout)
	if report.Failed {
		// The package was still written; a failed smoke test is advisory.
		log.Warn().Err(report.Err).Msg("smoke test failed")
	}
	return nil
}

// resolveModel turns the --model flag into a local model folder: first as a
// path, then as a previously downloaded model, and finally by downloading
// from the hub.
func resolveModel(name string) (string, string, error) {
	exists, err := fileutil.FileExists(name)
	if err != nil {
		return "", "", err
	}
	if exists {
		return name, nerpack.ModelIDFromPath(name), nil
	}

	downloadedName := strings.Replace(name, "/", "_", -1)
	downloadedPath := fileutil.PathJoinSafe(modelsDir, downloadedName)
	exists, err = fileutil.FileExists(downloadedPath)
	if err != nil {
		return "", "", err
	}
	if exists {
		return downloadedPath, name, nil
	}

	if strings.Contains(name, ":") {
		return "", "", fmt.Errorf("filters with : are currently not supported")
	}
	log.Info().Str("model", name).Str("destination", modelsDir).Msg("downloading model")
	downloadOptions := nerpack.NewDownloadOptions()
	downloadOptions.OnnxFilePath = onnxFilename
	downloadOptions.Verbose = true
	modelPath, err := nerpack.DownloadModel(name, modelsDir, downloadOptions)
	if err != nil {
		return "", "", err
	}
	return modelPath, name, nil
}

func newConvertSession() (*nerpack.Session, error) {
	switch strings.ToUpper(backend) {
	case "GO":
		return nerpack.NewGoSession()
	case "ORT":
		var opts []options.WithOption
		if sharedLibraryPath != "" {
			opts = append(opts, options.WithOnnxLibraryPath(sharedLibraryPath))
		}
		return nerpack.NewORTSession(opts...)
	default:
		return nil, fmt.Errorf("unknown backend %q, must be GO or ORT", backend)
	}
}

func main() {
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// a bare invocation converts the default model
	app := &cli.App{
		Name:     "nerpack",
		Usage:    "package huggingface NER models for on-device inference",
		Commands: []*cli.Command{convertCommand},
		Flags:    convertCommand.Flags,
		Action:   runConvert,
	}
	if err := app.Run(os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		log.Error().Err(err).Msg("nerpack failed")
		os.Exit(1)
	}
}
