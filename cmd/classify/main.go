package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Brownie44l1/art-classifier/internal/classify"
	"github.com/Brownie44l1/art-classifier/internal/config"
	"github.com/Brownie44l1/art-classifier/internal/display"
	"github.com/Brownie44l1/art-classifier/internal/labels"
	"github.com/Brownie44l1/art-classifier/internal/model"
	"github.com/Brownie44l1/art-classifier/internal/preprocess"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath    string
	modelPath     string
	metadataPath  string
	ortLib        string
	imageSize     int
	interpolation string
	noDisplay     bool
	outputPath    string
	verbose       bool

	logger   *zap.Logger
	logLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

var rootCmd = &cobra.Command{
	Use:   "art-classifier [image]",
	Short: "Classify an artwork image as digital art, painting or sculpture",
	Long: `Loads the pretrained ONNX art classifier, resizes and normalises one image,
runs a single forward pass and prints the predicted class. The image is then
shown with the predicted label as its title.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			logLevel.SetLevel(zapcore.DebugLevel)
		}
		zcfg.Level = logLevel
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runClassify,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the model's inputs, outputs and metadata",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write the default configuration as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "art-classifier.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.DefaultConfig().Save(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "art-classifier.yaml", "YAML configuration file")
	pf.StringVar(&modelPath, "model", "", "ONNX model file")
	pf.StringVar(&metadataPath, "metadata", "", "model metadata JSON (declares class order)")
	pf.StringVar(&ortLib, "ort-lib", "", "onnxruntime shared library")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	f := rootCmd.Flags()
	f.IntVar(&imageSize, "size", 0, "model input height and width")
	f.StringVar(&interpolation, "interpolation", "", "resize filter: nearest, bilinear, bicubic, mitchell, lanczos2, lanczos3")
	f.BoolVar(&noDisplay, "no-display", false, "do not open the titled image")
	f.StringVarP(&outputPath, "output", "o", "", "write the titled image here")

	rootCmd.AddCommand(summaryCmd, initConfigCmd)
}

// loadConfig layers command-line flags over the YAML file.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	cfg, err := config.Load(configFile(flags.Changed("config"), root))
	if err != nil {
		return nil, err
	}

	if flags.Changed("model") {
		cfg.Model.Path = modelPath
	}
	if flags.Changed("metadata") {
		cfg.Model.MetadataPath = metadataPath
	}
	if flags.Changed("ort-lib") {
		cfg.Model.SharedLib = ortLib
	}
	if flags.Changed("size") {
		cfg.Image.Size = imageSize
	}
	if flags.Changed("interpolation") {
		cfg.Image.Interpolation = interpolation
	}
	if flags.Changed("no-display") {
		cfg.Display.Enabled = !noDisplay
	}
	if flags.Changed("output") {
		cfg.Display.OutputPath = outputPath
	}
	if len(args) == 1 {
		cfg.Image.Path = args[0]
	}

	cfg.Model.Path = resolvePath(root, cfg.Model.Path)
	cfg.Image.Path = resolvePath(root, cfg.Image.Path)
	if cfg.Model.MetadataPath != "" {
		cfg.Model.MetadataPath = resolvePath(root, cfg.Model.MetadataPath)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !verbose {
		if err := logLevel.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
			return nil, fmt.Errorf("invalid logging.level: %w", err)
		}
	}
	return cfg, nil
}

// projectRoot is the working directory, or the repository root when run
// from inside cmd/classify.
func projectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	if filepath.Base(wd) == "classify" && filepath.Base(filepath.Dir(wd)) == "cmd" {
		wd = filepath.Join(wd, "..", "..")
	}
	return wd, nil
}

// configFile returns the config path to read. The default name is looked up
// in the project root; an explicit --config is used as given.
func configFile(explicit bool, root string) string {
	if explicit {
		return configPath
	}
	return resolvePath(root, configPath)
}

func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func openModel(cfg *config.Config) (*model.Classifier, error) {
	logger.Info("Loading model", zap.String("path", cfg.Model.Path))
	return model.Open(model.Options{
		Path:         cfg.Model.Path,
		MetadataPath: cfg.Model.MetadataPath,
		InputName:    cfg.Model.InputName,
		OutputName:   cfg.Model.OutputName,
		SharedLib:    cfg.Model.SharedLib,
		Logger:       logger,
	})
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	classifier, err := openModel(cfg)
	if err != nil {
		return err
	}
	defer classifier.Close()

	fmt.Fprint(cmd.OutOrStdout(), classifier.Summary())

	if err := classifier.Metadata.CheckImageSize(cfg.Image.Size); err != nil {
		return err
	}

	pre, err := preprocess.New(cfg.Image.Size, cfg.Image.Interpolation)
	if err != nil {
		return err
	}

	pipeline := &classify.Pipeline{
		Predictor:    classifier,
		Preprocessor: pre,
		Labels:       labels.Table(cfg.Labels),
		Classes:      classifier.Classes(),
		Out:          cmd.OutOrStdout(),
		Logger:       logger,
	}

	res, err := pipeline.Run(cmd.Context(), cfg.Image.Path)
	if err != nil {
		return err
	}
	logger.Info("Classified image",
		zap.String("image", cfg.Image.Path),
		zap.String("label", res.Prediction.Label),
		zap.Float32("score", res.Prediction.Score))

	if !cfg.Display.Enabled && cfg.Display.OutputPath == "" {
		return nil
	}

	original, err := preprocess.LoadImage(cfg.Image.Path)
	if err != nil {
		return err
	}

	viewer := &display.Viewer{}
	if cfg.Display.Enabled {
		viewer = display.NewViewer()
	}
	written, err := viewer.Show(original, display.Title(res.Prediction.Label), cfg.Display.OutputPath)
	if err != nil {
		return err
	}
	logger.Debug("Wrote titled image", zap.String("path", written))
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	classifier, err := openModel(cfg)
	if err != nil {
		return err
	}
	defer classifier.Close()

	fmt.Fprint(cmd.OutOrStdout(), classifier.Summary())
	fmt.Fprintf(cmd.OutOrStdout(), "Model expected input shape: %s\n",
		preprocess.FormatShape(classifier.DeclaredInputShape()))
	if classes := classifier.Classes(); len(classes) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Classes: %v\n", classes)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
