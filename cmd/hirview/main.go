// Command hirview decompiles a method listing and prints the resulting
// tree, or the tree after any named pipeline stage.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/decompiler"
	"github.com/wippyai/decompiler/domain"
	"github.com/wippyai/decompiler/hir"
	"github.com/wippyai/decompiler/listing"
)

func main() {
	var (
		inFile      = flag.String("in", "", "Path to a method listing (.yaml or .cbor)")
		configFile  = flag.String("config", "", "Path to a TOML configuration file")
		stage       = flag.String("stage", "", "Print the tree after this stage instead of the result")
		convert     = flag.String("convert", "", "Write the listing to this path (.yaml or .cbor) and exit")
		interactive = flag.Bool("i", false, "Browse every stage in a TUI")
		verbose     = flag.Bool("v", false, "Development logging at debug level")
	)
	flag.Parse()

	if *inFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: hirview -in <method.yaml> [-config file.toml] [-stage name] [-v]")
		fmt.Fprintln(os.Stderr, "       hirview -in <method.yaml> -convert <method.cbor>")
		fmt.Fprintln(os.Stderr, "       hirview -in <method.yaml> -i  (interactive mode)")
		fmt.Fprintf(os.Stderr, "Stages: %s\n", strings.Join(decompiler.Stages(), ", "))
		os.Exit(1)
	}

	if err := run(*inFile, *configFile, *stage, *convert, *interactive, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(inFile, configFile, stage, convert string, interactive, verbose bool) error {
	conf := domain.DefaultConfig()
	if configFile != "" {
		c, err := domain.LoadConfig(configFile)
		if err != nil {
			return err
		}
		conf = c
	}

	log, err := newLogger(conf.Log, verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()
	decompiler.SetLogger(log)

	doc, err := listing.Load(inFile)
	if err != nil {
		return err
	}
	if convert != "" {
		if err := listing.Save(convert, doc); err != nil {
			return err
		}
		log.Info("listing converted", zap.String("from", inFile), zap.String("to", convert))
		return nil
	}

	m, err := doc.Method(nil)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	sem, err := conf.ToSemantics()
	if err != nil {
		return err
	}

	if stage != "" && !knownStage(stage) {
		return fmt.Errorf("unknown stage %q (have %s)", stage, strings.Join(decompiler.Stages(), ", "))
	}

	snaps := &snapshots{lang: sem.Language}
	dc, err := decompiler.New(&decompiler.Config{
		Passes:  conf.Passes.Disable,
		Logger:  log,
		OnStage: snaps.record,
	})
	if err != nil {
		return err
	}

	fn, decompileErr := dc.DecompileIn(domain.New(sem), m)

	if interactive {
		if decompileErr != nil {
			snaps.add("error", decompileErr.Error())
		} else {
			snaps.add("result", hir.Dump(fn, sem.Language))
		}
		return runInteractive(m.Key(), snaps.list)
	}

	if decompileErr != nil {
		return decompileErr
	}
	if stage == "" {
		fmt.Println(hir.Dump(fn, sem.Language))
		return nil
	}
	for _, s := range snaps.list {
		if s.name == stage {
			fmt.Println(s.text)
			return nil
		}
	}
	return fmt.Errorf("stage %q did not run", stage)
}

func knownStage(name string) bool {
	for _, s := range decompiler.Stages() {
		if s == name {
			return true
		}
	}
	return false
}

func newLogger(c domain.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose || c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else if c.Level != "" {
		lvl, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

type snapshot struct {
	name string
	text string
}

// snapshots renders each stage as it completes. Trees are dumped
// immediately since later stages rewrite them in place.
type snapshots struct {
	list []snapshot
	lang hir.Language
}

func (s *snapshots) record(stage string, root *hir.Block) {
	s.add(stage, hir.Dump(root, s.lang))
}

func (s *snapshots) add(name, text string) {
	s.list = append(s.list, snapshot{name: name, text: text})
}
