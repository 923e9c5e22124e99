// Prepares training data for two-stage PPE detection: converts annotations to YOLO labels, separates
// person and PPE labels, crops person images with reprojected PPE labels and runs a detector over
// images.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sensorable/ppeprep"
	"go.uber.org/zap"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, args []string) error
}

var commands = []command{
	{"convert", "convert VOC or KITTI annotations to YOLO labels or TFRecords", runConvert},
	{"separate", "split YOLO labels into person and PPE label directories", runSeparate},
	{"crop", "crop person images and reproject their PPE labels", runCrop},
	{"infer", "run a PPE detector over images and save annotated copies", runInfer},
}

func usage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s:\n", filepath.Base(os.Args[0]))
	_, _ = fmt.Fprintf(os.Stderr, "  %s <command> [flags]\n\n", filepath.Base(os.Args[0]))
	for _, c := range commands {
		_, _ = fmt.Fprintf(os.Stderr, "  %-10s%s\n", c.name, c.summary)
	}
	_, _ = fmt.Fprintln(os.Stderr, "\nRun a command with -h for its flags.")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, c := range commands {
		if c.name != os.Args[1] {
			continue
		}
		err := c.run(ctx, os.Args[2:])
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%s failed: %v\n", c.name, err)
			os.Exit(1)
		}
		return
	}

	usage()
	os.Exit(1)
}

// commonFlags are registered on every command's flag set.
type commonFlags struct {
	configPath string
	logMode    string
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "The YAML configuration file `path` (optional)")
	fs.StringVar(&c.logMode, "log-mode", "", "The log `mode` {debug, release}; overrides the config")
	return c
}

// setup parses args into fs, loads the configuration and builds the logger. The returned set holds
// the names of all flags given on the command line, which take precedence over config values.
func setup(fs *flag.FlagSet, common *commonFlags, args []string) (
		*ppeprep.Config, *zap.Logger, map[string]bool, error) {

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, nil, err
		}
		return nil, nil, nil, ppeprep.NewConfigurationError(err, "bad arguments")
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := ppeprep.LoadConfig(common.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if set["log-mode"] {
		cfg.Log.Mode = common.logMode
	}

	logger, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to create the logger")
	}
	return cfg, logger, set, nil
}

// requireArg fails with a ConfigurationError if the value of the flag name is empty.
func requireArg(name, value string) error {
	if value == "" {
		return ppeprep.NewConfigurationError(errors.Errorf("missing -%s argument", name),
			"bad arguments")
	}
	return nil
}

// requireDir fails with a ConfigurationError if path is not an existing directory.
func requireDir(name, path string) error {
	if err := requireArg(name, path); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return ppeprep.NewConfigurationError(err, "-%s", name)
	}
	if !info.IsDir() {
		return ppeprep.NewConfigurationError(errors.Errorf("%q is not a directory", path),
			"-%s", name)
	}
	return nil
}

// splitList splits a comma-separated flag value, dropping empty elements.
func splitList(s string) []string {
	var list []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}
