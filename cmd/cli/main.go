// Command pkctl acts as a wallet device against a PassKit web service; useful
// for exercising a deployment by hand.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ---- state store ----

// state remembers the lastUpdated marker per pass type so "updates" polls incrementally.
type state struct {
	LastUpdated map[string]string `json:"last_updated"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "pkctl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "pkctl")
}

func statePath(device string) string { return filepath.Join(cfgDir(), device+".json") }

func loadState(device string) (state, error) {
	st := state{LastUpdated: map[string]string{}}
	b, err := os.ReadFile(statePath(device))
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, err
	}
	if st.LastUpdated == nil {
		st.LastUpdated = map[string]string{}
	}
	return st, nil
}

func saveState(device string, st state) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath(device), b, 0o600)
}

// ---- http client ----

func loadTLS(caPath string, insecure bool) (*tls.Config, error) {
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}, nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return &tls.Config{RootCAs: pool}, nil
}

func newHTTPClient(caPath string, insecure bool) (*http.Client, error) {
	tc, err := loadTLS(caPath, insecure)
	if err != nil {
		return nil, err
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tc
	return &http.Client{Transport: tr, Timeout: 30 * time.Second}, nil
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `pkctl
Usage:
  pkctl -url https://host/v1 -device <id> [-cacert file | -insecure] <cmd> [args]

Commands:
  version
  register   -type <passTypeID> -serial <sn> -token <auth> -push <pushToken>
  unregister -type <passTypeID> -serial <sn> -token <auth>
  updates    -type <passTypeID> [-since "YYYY-MM-DD HH:MM:SS" | -full]   (remembers lastUpdated)
  fetch      -type <passTypeID> -serial <sn> -token <auth> [-ims <RFC1123>] [-out file]
  log        <message>...
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the configured web service URL.
func main() {
	// global flags
	baseURL := flag.String("url", "http://localhost:8080/v1", "web service URL including the version prefix")
	device := flag.String("device", "pkctl-device", "deviceLibraryIdentifier to act as")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	if flag.Arg(0) == "version" {
		fmt.Printf("pkctl %s (%s)\n", version, buildDate)
		return
	}

	hc, err := newHTTPClient(*caPath, *insecure)
	if err != nil {
		fail(err)
	}
	c := &client{base: strings.TrimRight(*baseURL, "/"), device: *device, hc: hc, out: os.Stdout}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			usage()
		}
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
