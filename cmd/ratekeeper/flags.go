package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

// urlList collects repeated -url values.
type urlList []string

func (u *urlList) String() string { return strings.Join(*u, ",") }

func (u *urlList) Set(value string) error {
	*u = append(*u, value)
	return nil
}

// AppFlags holds command-line overrides. Zero values mean "use the config file".
type AppFlags struct {
	GlobalConfigFile string
	TargetsFile      string
	URLs             []string
	Method           string
	Preset           string
	Concurrency      int
	ResultsDB        string
	MetricsAddr      string
}

// ParseFlags parses args (without the program name).
func ParseFlags(args []string, output io.Writer) (AppFlags, error) {
	fs := flag.NewFlagSet("ratekeeper", flag.ContinueOnError)
	fs.SetOutput(output)

	globalConfigFile := fs.String("config", "", "Path to the global YAML/JSON configuration file. If not set, searches default locations.")
	globalConfigFileAlias := fs.String("c", "", "Alias for -config")

	targetsFile := fs.String("targets", "", "Path to a text file containing one URL per line.")
	targetsFileAlias := fs.String("t", "", "Alias for -targets")

	var urls urlList
	fs.Var(&urls, "url", "URL to probe (repeatable)")
	fs.Var(&urls, "u", "Alias for -url")

	method := fs.String("method", "", "HTTP method used for every target (overrides config file if set)")
	preset := fs.String("preset", "", "Retry preset: conservative, balanced or aggressive (overrides config file if set)")
	concurrency := fs.Int("concurrency", 0, "Maximum concurrent requests (overrides config file if set)")
	resultsDB := fs.String("results-db", "", "SQLite file for operation results (overrides config file if set)")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	if err := fs.Parse(args); err != nil {
		return AppFlags{}, err
	}

	flags := AppFlags{
		GlobalConfigFile: firstNonEmpty(*globalConfigFile, *globalConfigFileAlias),
		TargetsFile:      firstNonEmpty(*targetsFile, *targetsFileAlias),
		URLs:             append([]string(urls), fs.Args()...),
		Method:           *method,
		Preset:           *preset,
		Concurrency:      *concurrency,
		ResultsDB:        *resultsDB,
		MetricsAddr:      *metricsAddr,
	}

	if flags.TargetsFile == "" && len(flags.URLs) == 0 {
		return AppFlags{}, fmt.Errorf("no targets: use -targets <file> or -url <url>")
	}
	if flags.Concurrency < 0 {
		return AppFlags{}, fmt.Errorf("-concurrency must not be negative")
	}

	return flags, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
