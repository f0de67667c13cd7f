// Command anchorline-demo is a minimal integration driver: point it at a
// tracked source file and it reconciles that file's sidecar (creating one
// on first run) against the file's current content, then prints the
// resulting reconciliation report as JSON.
//
// It is integration glue for exercising pkg/project, pkg/sidecar, and
// pkg/anchor end to end — not a re-specification of anchorline's full CLI
// surface.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/wrenfield/anchorline/internal/obslog"
	"github.com/wrenfield/anchorline/pkg/anchor"
	"github.com/wrenfield/anchorline/pkg/config"
	"github.com/wrenfield/anchorline/pkg/model"
	"github.com/wrenfield/anchorline/pkg/normhash"
	"github.com/wrenfield/anchorline/pkg/project"
	"github.com/wrenfield/anchorline/pkg/sidecar"
)

var version = "dev"

func main() {
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: anchorline-demo [options] <file>\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	logger, err := obslog.New(obslog.Config{Level: *logLevel})
	if err != nil {
		log.Fatalf("Error configuring logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	sourcePath, err := filepath.Abs(flag.Arg(0))
	if err != nil {
		log.Fatalf("Error resolving path: %v", err)
	}
	if info, statErr := os.Stat(sourcePath); statErr != nil {
		log.Fatalf("Error: %v", statErr)
	} else if info.IsDir() {
		log.Fatalf("Error: %s is a directory, not a file", sourcePath)
	}

	root, err := project.FindRoot(filepath.Dir(sourcePath))
	if err != nil {
		log.Fatalf("Error finding project root: %v", err)
	}

	sidecarPath, err := project.SidecarPath(sourcePath, root)
	if err != nil {
		log.Fatalf("Error computing sidecar path: %v", err)
	}

	if err := ensureSidecar(sidecarPath, sourcePath, root); err != nil {
		log.Fatalf("Error preparing sidecar: %v", err)
	}

	cfg := config.FromEnv(logger)
	report, err := anchor.ReconcileSidecar(sidecarPath, sourcePath, cfg, logger)
	if err != nil {
		log.Fatalf("Error reconciling: %v", err)
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("Error encoding report: %v", err)
	}
	fmt.Println(string(out))
}

// ensureSidecar creates an empty sidecar at sidecarPath (with no threads)
// if one does not already exist, so a fresh file can be reconciled without
// requiring a prior comment-creation step that is out of this demo's scope.
func ensureSidecar(sidecarPath, sourcePath, root string) error {
	if _, err := os.Stat(sidecarPath); err == nil {
		return nil
	}

	hash, err := normhash.SourceHash(sourcePath)
	if err != nil {
		return err
	}
	relSource, err := project.ToPOSIXRelative(sourcePath, root)
	if err != nil {
		return err
	}
	sc, err := model.NewSidecarFile(relSource, hash)
	if err != nil {
		return err
	}
	return sidecar.Write(sidecarPath, sc, sidecar.DefaultWriteOptions())
}
