// Command voiceref normalizes dictated scripture references.
// It parses speech-to-text output, inspects and converts catalogs, fetches
// passage text and serves the parser over HTTP and WebSocket.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/VoiceRef/core/catalog"
	"github.com/FocuswithJustin/VoiceRef/core/catalog/store"
	"github.com/FocuswithJustin/VoiceRef/core/errors"
	"github.com/FocuswithJustin/VoiceRef/core/ref"
	"github.com/FocuswithJustin/VoiceRef/core/refparse"
	"github.com/FocuswithJustin/VoiceRef/internal/api"
	"github.com/FocuswithJustin/VoiceRef/internal/logging"
	"github.com/FocuswithJustin/VoiceRef/internal/passage"
)

const version = "1.0.0"

// Globals are flags shared by every command.
type Globals struct {
	Config    kong.ConfigFlag `help:"JSON file with flag defaults"`
	Catalog   string          `help:"Catalog dataset (.json, .json.xz, .db, .sqlite); built-in KJV if empty" type:"path" env:"VOICEREF_CATALOG"`
	Synonyms  string          `help:"JSON file of extra spoken book names, merged over the defaults" type:"path" env:"VOICEREF_SYNONYMS"`
	LogLevel  string          `help:"Log level" default:"warn" enum:"debug,info,warn,error" env:"VOICEREF_LOG_LEVEL"`
	LogFormat string          `help:"Log format" default:"text" enum:"json,text" env:"VOICEREF_LOG_FORMAT"`
	LogFile   string          `help:"Write logs to a rotating file instead of stderr" type:"path" env:"VOICEREF_LOG_FILE"`
}

// CLI defines the command-line interface for voiceref.
type CLI struct {
	Globals

	Parse    ParseCmd     `cmd:"" help:"Normalize dictated text to a canonical reference"`
	Parts    PartsCmd     `cmd:"" help:"Show the parts of a normalized reference"`
	Check    CheckCmd     `cmd:"" help:"Check a canonical reference against the catalog"`
	Passage  PassageCmd   `cmd:"" help:"Fetch the passage text for dictated text"`
	Serve    ServeCmd     `cmd:"" help:"Start the HTTP and WebSocket server"`
	Catalogs CatalogGroup `cmd:"" name:"catalog" help:"Catalog operations (info, export, import-osis)"`
	Version  VersionCmd   `cmd:"" help:"Print version information"`
}

// env carries what commands need at run time.
type env struct {
	ctx     context.Context
	out     io.Writer
	globals *Globals

	cat    *catalog.Catalog
	parser *refparse.Parser
}

// loadCatalog returns the --catalog dataset, or the built-in KJV catalog.
func (e *env) loadCatalog() (*catalog.Catalog, error) {
	if e.cat != nil {
		return e.cat, nil
	}
	source := "builtin:kjv"
	cat := catalog.KJV()
	if e.globals.Catalog != "" {
		var err error
		if cat, err = store.LoadFile(e.ctx, e.globals.Catalog); err != nil {
			return nil, err
		}
		source = e.globals.Catalog
	}
	logging.CatalogLoaded(source, cat.Len(), cat.Digest())
	e.cat = cat
	return cat, nil
}

// loadParser builds a parser over the catalog and any --synonyms file.
func (e *env) loadParser() (*refparse.Parser, error) {
	if e.parser != nil {
		return e.parser, nil
	}
	cat, err := e.loadCatalog()
	if err != nil {
		return nil, err
	}

	syn := refparse.DefaultSynonyms()
	if e.globals.Synonyms != "" {
		f, err := os.Open(e.globals.Synonyms)
		if err != nil {
			return nil, errors.NewIO("open", e.globals.Synonyms, err)
		}
		extra, err := refparse.LoadSynonyms(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "synonyms %s", e.globals.Synonyms)
		}
		syn = syn.Merge(extra)
	}
	if err := syn.Validate(cat); err != nil {
		// Unknown targets still fall through to fuzzy matching.
		logging.Warn("synonyms name books missing from the catalog", "error", err.Error())
	}

	e.parser = refparse.New(cat, syn)
	return e.parser, nil
}

// ParseCmd prints the canonical reference for dictated text.
type ParseCmd struct {
	Text []string `arg:"" help:"Dictated words, e.g. john chapter three verse sixteen"`
}

func (c *ParseCmd) Run(e *env) error {
	p, err := e.loadParser()
	if err != nil {
		return err
	}
	raw := strings.Join(c.Text, " ")
	start := time.Now()
	s, err := p.ParseReference(raw)
	logging.ReferenceParsed(e.ctx, raw, s, err, time.Since(start))
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, s)
	return nil
}

// PartsCmd prints the structured parts of a reference.
type PartsCmd struct {
	Text []string `arg:"" help:"Dictated words"`
	JSON bool     `name:"json" help:"Print the parts as JSON"`
}

func (c *PartsCmd) Run(e *env) error {
	p, err := e.loadParser()
	if err != nil {
		return err
	}
	r, err := p.ParseParts(strings.Join(c.Text, " "))
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(e.out, "reference:   %s\n", r)
	fmt.Fprintf(e.out, "book:        %s\n", r.Name)
	printPart(e.out, "chapter:    ", r.Chapter)
	printPart(e.out, "verse start:", r.VerseStart)
	printPart(e.out, "verse end:  ", r.VerseEnd)
	return nil
}

func printPart(w io.Writer, label string, n int) {
	if n > 0 {
		fmt.Fprintf(w, "%s %d\n", label, n)
	}
}

// CheckCmd validates a canonical reference against the catalog.
type CheckCmd struct {
	Reference string `arg:"" help:"Canonical reference, e.g. \"1 John 3:16-18\""`
}

func (c *CheckCmd) Run(e *env) error {
	r, err := ref.ParseCanonical(c.Reference)
	if err != nil {
		return err
	}
	cat, err := e.loadCatalog()
	if err != nil {
		return err
	}
	if err := checkBounds(cat, r); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "ok %s\n", r)
	return nil
}

// checkBounds reports the first part of r that falls outside cat.
func checkBounds(cat *catalog.Catalog, r ref.Reference) error {
	chapters, ok := cat.Lookup(r.Name)
	if !ok {
		return errors.NewNotFound("book", r.Name)
	}
	if r.Chapter == 0 {
		return nil
	}
	verses, ok := chapters[r.Chapter]
	if !ok {
		return errors.NewValidation(r.Name, fmt.Sprintf("chapter %d out of range 1-%d", r.Chapter, len(chapters)))
	}
	for _, v := range []int{r.VerseStart, r.VerseEnd} {
		if v > verses {
			return errors.NewValidation(r.Name, fmt.Sprintf("verse %d out of range 1-%d in chapter %d", v, verses, r.Chapter))
		}
	}
	if r.IsRange() && r.VerseEnd < r.VerseStart {
		return errors.NewValidation(r.Name, fmt.Sprintf("range %d-%d runs backwards", r.VerseStart, r.VerseEnd))
	}
	return nil
}

// PassageFlags configure the passage client.
type PassageFlags struct {
	PassageURL     string        `name:"passage-url" help:"bible-api.com compatible service" default:"https://bible-api.com" env:"VOICEREF_PASSAGE_URL"`
	PassageTimeout time.Duration `name:"passage-timeout" help:"Timeout per passage request" default:"15s" env:"VOICEREF_PASSAGE_TIMEOUT"`
	PassageRetries int           `name:"passage-retries" help:"Retries after a 5xx or transport error (negative disables)" default:"2" env:"VOICEREF_PASSAGE_RETRIES"`
	PassageCache   time.Duration `name:"passage-cache" help:"How long fetched passages are cached (negative disables)" default:"10m" env:"VOICEREF_PASSAGE_CACHE"`
}

func (f PassageFlags) config() passage.Config {
	retries := f.PassageRetries
	if retries == 0 {
		retries = -1
	}
	return passage.Config{
		BaseURL:   f.PassageURL,
		Timeout:   f.PassageTimeout,
		Retries:   retries,
		CacheTTL:  f.PassageCache,
		UserAgent: "voiceref/" + version,
	}
}

// PassageCmd fetches passage text.
type PassageCmd struct {
	Text []string `arg:"" help:"Dictated words"`
	JSON bool     `name:"json" help:"Print the full passage as JSON"`

	PassageFlags `embed:""`
}

func (c *PassageCmd) Run(e *env) error {
	p, err := e.loadParser()
	if err != nil {
		return err
	}
	client := passage.NewClient(c.config(), p)
	got, err := client.Fetch(e.ctx, strings.Join(c.Text, " "))
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(e.out)
		enc.SetIndent("", "  ")
		return enc.Encode(got)
	}
	fmt.Fprintln(e.out, got.Reference)
	fmt.Fprintln(e.out, strings.TrimSpace(got.Text))
	return nil
}

// ServeCmd starts the API server.
type ServeCmd struct {
	Port           int      `help:"HTTP server port" default:"8080" env:"VOICEREF_PORT"`
	APIKey         string   `name:"api-key" help:"Require this X-API-Key on every endpoint except / and /health" env:"VOICEREF_API_KEY"`
	RateLimit      int      `name:"rate-limit" help:"Requests per minute per client IP (0 disables)" env:"VOICEREF_RATE_LIMIT"`
	RateBurst      int      `name:"rate-burst" help:"Burst size for rate limiting" default:"10" env:"VOICEREF_RATE_BURST"`
	AllowedOrigins []string `name:"allowed-origin" help:"Allowed CORS and WebSocket origin (repeatable; empty allows all)" env:"VOICEREF_ALLOWED_ORIGINS"`
	NoPassages     bool     `name:"no-passages" help:"Disable GET /passage"`

	PassageFlags `embed:""`
}

func (c *ServeCmd) Run(e *env) error {
	p, err := e.loadParser()
	if err != nil {
		return err
	}

	var passages api.PassageSource
	if !c.NoPassages {
		passages = passage.NewClient(c.config(), p)
	}

	srv, err := api.New(c.apiConfig(), p, passages)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(e.ctx)
}

func (c *ServeCmd) apiConfig() api.Config {
	return api.Config{
		Port:              c.Port,
		Version:           version,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateBurst,
		Auth:              api.AuthConfig{Enabled: c.APIKey != "", APIKey: c.APIKey},
		AllowedOrigins:    c.AllowedOrigins,
	}
}

// CatalogGroup contains catalog operations.
type CatalogGroup struct {
	Info       CatalogInfoCmd       `cmd:"" help:"Summarize the catalog in use"`
	Export     CatalogExportCmd     `cmd:"" help:"Write the catalog in use to a file"`
	ImportOSIS CatalogImportOSISCmd `cmd:"" name:"import-osis" help:"Build a catalog from an OSIS XML Bible"`
}

// CatalogInfoCmd prints catalog statistics.
type CatalogInfoCmd struct {
	Books bool `help:"List every book with its chapter count"`
}

func (c *CatalogInfoCmd) Run(e *env) error {
	cat, err := e.loadCatalog()
	if err != nil {
		return err
	}
	books := cat.Books()
	chapters, verses := 0, 0
	for _, b := range books {
		chapters += len(b.Chapters)
		for _, v := range b.Chapters {
			verses += v
		}
	}

	source := e.globals.Catalog
	if source == "" {
		source = "built-in KJV"
	}
	fmt.Fprintf(e.out, "source:   %s\n", source)
	fmt.Fprintf(e.out, "books:    %d\n", len(books))
	fmt.Fprintf(e.out, "chapters: %d\n", chapters)
	fmt.Fprintf(e.out, "verses:   %d\n", verses)
	fmt.Fprintf(e.out, "digest:   %s\n", cat.Digest())
	if c.Books {
		for _, b := range books {
			fmt.Fprintf(e.out, "  %-18s %3d\n", b.Name, len(b.Chapters))
		}
	}
	return nil
}

// CatalogExportCmd writes the catalog to --out.
type CatalogExportCmd struct {
	Out string `required:"" help:"Output path (.json, .json.xz, .db, .sqlite)" type:"path"`
}

func (c *CatalogExportCmd) Run(e *env) error {
	cat, err := e.loadCatalog()
	if err != nil {
		return err
	}
	if err := store.SaveFile(e.ctx, c.Out, cat); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "wrote %d books to %s (digest %s)\n", cat.Len(), c.Out, cat.Digest())
	return nil
}

// CatalogImportOSISCmd converts OSIS XML into a catalog file.
type CatalogImportOSISCmd struct {
	XML string `arg:"" help:"OSIS XML file" type:"existingfile"`
	Out string `required:"" help:"Output path (.json, .json.xz, .db, .sqlite)" type:"path"`
}

func (c *CatalogImportOSISCmd) Run(e *env) error {
	f, err := os.Open(c.XML)
	if err != nil {
		return errors.NewIO("open", c.XML, err)
	}
	defer f.Close()

	cat, err := catalog.FromOSIS(f)
	if err != nil {
		return errors.Wrapf(err, "import %s", c.XML)
	}
	if err := store.SaveFile(e.ctx, c.Out, cat); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "imported %d books from %s to %s (digest %s)\n", cat.Len(), c.XML, c.Out, cat.Digest())
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(e *env) error {
	fmt.Fprintf(e.out, "voiceref version %s\n", version)
	return nil
}

// newParser builds the kong parser. JSON config files named by --config
// supply defaults for any flag.
func newParser(cli *CLI, stdout, stderr io.Writer, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("voiceref"),
		kong.Description("VoiceRef - normalize dictated scripture references"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Configuration(kong.JSON),
		kong.Writers(stdout, stderr),
	}, options...)
	return kong.New(cli, options...)
}

// setupLogging applies the --log-* flags. The returned closer releases a
// log file.
func setupLogging(g *Globals, stderr io.Writer) (io.Closer, error) {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return nil, err
	}
	logging.InitLogger(level, format)
	if g.LogFile != "" {
		return logging.SetOutput(g.LogFile, logging.FileOptions{MaxSizeMB: 16, MaxBackups: 3, Compress: true}), nil
	}
	logging.SetWriter(stderr)
	return nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// run parses args and runs the selected command.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, options ...kong.Option) error {
	var cli CLI
	parser, err := newParser(&cli, stdout, stderr, options...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	closer, err := setupLogging(&cli.Globals, stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	return kctx.Run(&env{ctx: ctx, out: stdout, globals: &cli.Globals})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "voiceref:", err)
		stop()
		os.Exit(1)
	}
}
