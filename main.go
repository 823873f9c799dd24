// Clshare downloads claude.ai share pages, extracts the conversation
// and keeps markdown renditions in a local cache.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"clshare/cache"
	"clshare/config"
	"clshare/extract"
	"clshare/fetcher"
	"clshare/shareurl"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "scrape":
		err = cmdScrape(os.Args[2:])
	case "batch":
		err = cmdBatch(os.Args[2:])
	case "list":
		err = cmdList(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "cleanup":
		err = cmdCleanup(os.Args[2:])
	case "--init-config":
		fmt.Print(config.DefaultTOML())
	case "-h", "--help", "help":
		printUsage()
	default:
		// A bare share URL is shorthand for scrape.
		if strings.HasPrefix(cmd, "http") {
			err = cmdScrape(os.Args[1:])
		} else {
			fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
			printUsage()
			os.Exit(1)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`clshare - claude.ai share page scraper

Usage: clshare <command> [options]

Commands:
  scrape <url>      Download one share page into the cache
  batch <file>      Scrape every URL listed in a file (one per line)
  list              List cached conversations
  stats             Show cache statistics
  cleanup           Reconcile the cache index with the disk
  --init-config     Output default config (redirect to ~/.config/clshare/config.toml)

Options (scrape, batch):
  -cache-dir dir    Cache directory (default: config, then ~/.cache/clshare)
  -force            Re-fetch even when already cached
  -no-markdown      Skip the rendered markdown document
  -timeout seconds  HTTP timeout override
  -v                Verbose logging

Options (batch):
  -continue-on-error  Keep going when one URL fails

Examples:
  clshare scrape https://claude.ai/share/75a3648c-8bfa-4730-b3c9-57c8a964051b
  clshare batch urls.txt -continue-on-error
  clshare list`)
}

// app bundles everything the commands share.
type app struct {
	cfg   *config.Config
	cache *cache.Manager
	ex    *extract.Extractor
	log   *slog.Logger
}

// commonFlags registers the flags every fetching command takes.
type commonFlags struct {
	cacheDir   string
	force      bool
	noMarkdown bool
	timeout    int
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.cacheDir, "cache-dir", "", "cache directory")
	fs.BoolVar(&c.force, "force", false, "re-fetch even when cached")
	fs.BoolVar(&c.noMarkdown, "no-markdown", false, "skip the rendered markdown document")
	fs.IntVar(&c.timeout, "timeout", 0, "HTTP timeout in seconds")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
}

// setup loads config, applies overrides and opens the cache.
func setup(cf *commonFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cf.timeout > 0 {
		cfg.Fetcher.TimeoutSeconds = cf.timeout
	}
	if cf.cacheDir != "" {
		cfg.Cache.Dir = cf.cacheDir
	}

	fetcher.Configure(fetcher.Options{
		UserAgent:      cfg.Fetcher.UserAgent,
		TimeoutSeconds: cfg.Fetcher.TimeoutSeconds,
		ChromePath:     cfg.Fetcher.ChromePath,
		MaxRetries:     cfg.Fetcher.MaxRetries,
	})

	level := slog.LevelWarn
	if cf.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dir, err := cfg.CacheDir()
	if err != nil {
		return nil, fmt.Errorf("resolving cache dir: %w", err)
	}
	m, err := cache.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("opening cache at %s: %w", dir, err)
	}

	return &app{cfg: cfg, cache: m, ex: extract.New(log), log: log}, nil
}

func cmdScrape(args []string) error {
	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("scrape needs exactly one share URL")
	}

	a, err := setup(&cf)
	if err != nil {
		return err
	}
	if err := fetcher.PrimeSession(); err != nil {
		a.log.Debug("session warm-up failed", "err", err)
	}
	return a.scrapeOne(fs.Arg(0), &cf)
}

func cmdBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	continueOnError := fs.Bool("continue-on-error", false, "keep going when one URL fails")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("batch needs a file of share URLs")
	}

	urls, err := readURLList(fs.Arg(0))
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs in %s", fs.Arg(0))
	}

	a, err := setup(&cf)
	if err != nil {
		return err
	}

	if err := fetcher.PrimeSession(); err != nil {
		a.log.Debug("session warm-up failed", "err", err)
	}

	limiter := fetcher.NewRateLimiter(
		time.Duration(a.cfg.RateLimit.MinDelaySeconds*float64(time.Second)),
		time.Duration(a.cfg.RateLimit.MaxDelaySeconds*float64(time.Second)),
	)

	failed := 0
	for i, u := range urls {
		// Cached entries don't cost a fetch, so don't rate-limit them.
		if !cf.force && a.cache.Has(shareurl.ExtractID(u)) {
			fmt.Printf("[%d/%d] cached   %s\n", i+1, len(urls), u)
			continue
		}
		limiter.Wait()
		if err := a.scrapeOne(u, &cf); err != nil {
			failed++
			if !*continueOnError {
				return fmt.Errorf("at %s: %w", u, err)
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] failed   %s: %v\n", i+1, len(urls), u, err)
		}
	}
	fmt.Printf("done: %d ok, %d failed\n", len(urls)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d URLs failed", failed, len(urls))
	}
	return nil
}

// scrapeOne fetches, extracts and caches a single share URL.
func (a *app) scrapeOne(rawURL string, cf *commonFlags) error {
	if !shareurl.IsValid(rawURL) {
		return fmt.Errorf("not a claude.ai share URL: %s", rawURL)
	}
	id := shareurl.ExtractID(rawURL)

	if !cf.force && a.cache.Has(id) {
		fmt.Printf("cached   %s (%s)\n", id, a.cache.Dir(id))
		return nil
	}

	a.log.Debug("fetching share page", "url", rawURL)
	res, err := fetcher.Smart(rawURL)
	if err != nil {
		return err
	}
	if blocked, reason := fetcher.IsBlockedResponse(res.HTML); blocked {
		return fmt.Errorf("fetch blocked: %s", reason)
	}
	a.log.Debug("fetched", "browser", res.UsedBrowser, "took", res.FetchTime, "bytes", len(res.HTML))

	result := a.ex.Extract(res.HTML, rawURL)
	if !result.Success {
		return fmt.Errorf("extracting conversation: %w", result.Err)
	}
	conv := result.Conversation

	markdown := ""
	if !cf.noMarkdown {
		markdown = conv.Markdown()
	}
	entry, err := a.cache.Store(conv, res.HTML, markdown)
	if err != nil {
		return fmt.Errorf("caching conversation: %w", err)
	}

	fmt.Printf("scraped  %s (%d messages) -> %s\n", conv.Title, len(conv.Turns), entry.Directory)
	return nil
}

func cmdList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(&cf)
	if err != nil {
		return err
	}
	entries := a.cache.List()
	if len(entries) == 0 {
		fmt.Println("cache is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-40s  %s\n", e.CachedAt.Format("2006-01-02 15:04"), truncate(e.Title, 40), e.ShareID)
	}
	return nil
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(&cf)
	if err != nil {
		return err
	}
	s := a.cache.Stats()
	fmt.Printf("cache:          %s\n", a.cache.Root())
	fmt.Printf("conversations:  %d\n", s.Conversations)
	fmt.Printf("files:          %d\n", s.Files)
	fmt.Printf("total size:     %s\n", formatBytes(s.TotalBytes))
	return nil
}

func cmdCleanup(args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup(&cf)
	if err != nil {
		return err
	}
	stale, orphans, err := a.cache.Cleanup()
	if err != nil {
		return err
	}
	fmt.Printf("removed %d stale index entries, %d orphan directories\n", stale, orphans)
	return nil
}

// readURLList reads share URLs from a file, one per line. Blank lines
// and #-comments are skipped.
func readURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, sc.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
