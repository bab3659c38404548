package main

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cellmaster/oglpatch/internal/fetch"
	"github.com/cellmaster/oglpatch/internal/patch"
	"github.com/cellmaster/oglpatch/internal/patchset"
	"github.com/cellmaster/oglpatch/internal/report"
	"github.com/cellmaster/oglpatch/internal/verify"
)

var version = "dev"

//go:embed docs/quickstart.txt
var quickstartDoc string

// writeDecision mirrors the outcome of comparing the patched document against
// an existing output file.
type writeDecision string

const (
	decisionProceed   writeDecision = "proceed"   // write (new or changed content)
	decisionSkip      writeDecision = "skip"      // identical content already on disk
	decisionReinstall writeDecision = "reinstall" // identical content, -force set
)

type jsonReport struct {
	Source  string         `json:"source"`
	SHA256  string         `json:"sha256"`
	OK      bool           `json:"ok"`
	Output  string         `json:"output,omitempty"`
	Wrote   bool           `json:"wrote"`
	Results []patch.Result `json:"results"`
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("oglpatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sourceURL := fs.String("url", defaultSourceURL, "source userscript URL")
	expectedSHA := fs.String("sha256", defaultExpectedSHA256, "expected SHA-256 hex digest of the source")
	output := fs.String("output", defaultOutputFile, "output file path")
	overlay := fs.String("patchset", "", "JSON patchset file replacing the builtin descriptors")
	keepGoing := fs.Bool("keep-going", false, "run all patches and report every failure instead of stopping at the first")
	verbose := fs.Bool("verbose", false, "show a diff preview for each applied patch")
	noColor := fs.Bool("no-color", false, "disable colored output")
	jsonOut := fs.Bool("json", false, "emit the report as JSON on stdout (for CI)")
	force := fs.Bool("force", false, "rewrite the output even when it is already up to date")
	minisignKey := fs.String("minisign-key", "", "path to a minisign public key; enables signature verification of the source")
	sigURL := fs.String("sig-url", "", "signature URL (default: source URL + .minisig)")
	dryRun := fs.Bool("dry-run", false, "apply and report but do not write the output file")
	versionFlag := fs.Bool("version", false, "print version")
	extendedHelp := fs.Bool("helpextended", false, "print quickstart & examples")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *versionFlag {
		fmt.Fprintln(stdout, "oglpatch", version)
		return 0
	}
	if *extendedHelp {
		fmt.Fprintln(stdout, strings.TrimSpace(quickstartDoc))
		return 0
	}

	var (
		set []patch.Descriptor
		err error
	)
	if *overlay != "" {
		set, err = patchset.Load(*overlay)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Using patchset %s (%d descriptors)\n", *overlay, len(set))
	} else {
		set = patchset.Builtin()
	}
	if err := patch.ValidateSet(set); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stderr, "Fetching %s\n", *sourceURL)
	data, err := fetch.Get(*sourceURL, fetch.UserAgent(version))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stderr, "Downloaded %s\n", report.FormatSize(int64(len(data))))

	if err := verify.Checksum(data, "sha256", *expectedSHA); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		fmt.Fprintln(stderr, "The upstream script changed or was tampered with; refusing to patch.")
		fmt.Fprintf(stderr, "Update the expected digest only after reviewing the new upstream release (supported: OGLight %s).\n", supportedUpstream)
		return 1
	}
	fmt.Fprintln(stderr, "Checksum verified OK")

	if *minisignKey != "" {
		src := *sigURL
		if src == "" {
			src = *sourceURL + ".minisig"
		}
		sigData, err := fetch.Get(src, fetch.UserAgent(version))
		if err != nil {
			fmt.Fprintf(stderr, "error: fetch signature: %v\n", err)
			return 1
		}
		if err := verify.MinisignSignature(data, sigData, *minisignKey); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stderr, "Minisign signature verified OK")
	}

	emitter := report.NewEmitter(stdout, emitterOptions(*verbose, *noColor)...)
	opts := []patch.Option{}
	if !*jsonOut {
		opts = append(opts, patch.WithObserver(emitter.Line))
	}
	if *keepGoing {
		opts = append(opts, patch.KeepGoing())
	}

	final, rep, applyErr := patch.Apply(string(data), set, opts...)

	if *jsonOut {
		doc := jsonReport{
			Source:  *sourceURL,
			SHA256:  *expectedSHA,
			OK:      rep.OK(),
			Results: rep.Results,
		}
		if applyErr == nil && !*dryRun {
			doc.Output = *output
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if applyErr == nil && !*dryRun {
			doc.Wrote, err = writeOutput(*output, []byte(final), *force, stderr)
			if err != nil {
				fmt.Fprintf(stderr, "error: %v\n", err)
				return 1
			}
		}
		if err := enc.Encode(doc); err != nil {
			fmt.Fprintf(stderr, "error: encode report: %v\n", err)
			return 1
		}
		if applyErr != nil {
			fmt.Fprintf(stderr, "error: %v\n", applyErr)
			return 1
		}
		return 0
	}

	emitter.Summary(rep)
	if applyErr != nil {
		// A missed patch means the output is semantically broken; never
		// write it.
		fmt.Fprintf(stderr, "error: %v\n", applyErr)
		return 1
	}

	if *dryRun {
		fmt.Fprintln(stderr, "Dry run; output not written")
		return 0
	}

	if _, err := writeOutput(*output, []byte(final), *force, stderr); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func emitterOptions(verbose, noColor bool) []report.Option {
	var opts []report.Option
	if verbose {
		opts = append(opts, report.Verbose())
	}
	if noColor {
		opts = append(opts, report.NoColor())
	}
	return opts
}

// decideWrite compares the patched document against whatever is already at
// path. Unreadable or missing files always proceed.
func decideWrite(path string, patched []byte, force bool) writeDecision {
	existing, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(existing, patched) {
		return decisionProceed
	}
	if force {
		return decisionReinstall
	}
	return decisionSkip
}

func writeOutput(path string, patched []byte, force bool, stderr io.Writer) (bool, error) {
	switch decideWrite(path, patched, force) {
	case decisionSkip:
		fmt.Fprintf(stderr, "%s already up to date; skipping write (use -force to rewrite)\n", path)
		return false, nil
	case decisionReinstall:
		fmt.Fprintf(stderr, "%s already up to date; rewriting (-force)\n", path)
	}

	if err := atomicWrite(path, patched); err != nil {
		return false, err
	}
	fmt.Fprintf(stderr, "Wrote %s (%s)\n", path, report.FormatSize(int64(len(patched))))
	return true, nil
}

// atomicWrite writes data via a temp file in the destination directory and
// renames it into place, so a failed run never leaves a truncated output.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".oglpatch-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	// #nosec G302 -- the output is a plain text userscript
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("install to %s: %w", path, err)
	}
	return nil
}
